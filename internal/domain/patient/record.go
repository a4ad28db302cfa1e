package patient

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cardicare/cardicare/internal/platform/codec"
	"github.com/cardicare/cardicare/internal/platform/fhir"
)

// Record is every resource held for one patient.
type Record struct {
	Patient      fhir.Patient
	Observations []fhir.Observation
	Conditions   []fhir.Condition
	Medications  []fhir.Medication
}

// NewRecord sorts raw bundle entries into a Record. Resource types the
// dashboard does not read are skipped.
func NewRecord(entries []fhir.BundleEntry) (*Record, error) {
	rec := &Record{}
	found := false
	for i, e := range entries {
		rt, err := e.ResourceType()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		switch rt {
		case "Patient":
			if err := codec.Unmarshal(e.Resource, &rec.Patient); err != nil {
				return nil, fmt.Errorf("decode patient: %w", err)
			}
			found = true
		case "Observation":
			var o fhir.Observation
			if err := codec.Unmarshal(e.Resource, &o); err != nil {
				return nil, fmt.Errorf("decode observation: %w", err)
			}
			rec.Observations = append(rec.Observations, o)
		case "Condition":
			var c fhir.Condition
			if err := codec.Unmarshal(e.Resource, &c); err != nil {
				return nil, fmt.Errorf("decode condition: %w", err)
			}
			rec.Conditions = append(rec.Conditions, c)
		case "MedicationStatement", "MedicationDispense", "MedicationOrder", "MedicationRequest":
			var m fhir.Medication
			if err := codec.Unmarshal(e.Resource, &m); err != nil {
				return nil, fmt.Errorf("decode %s: %w", rt, err)
			}
			rec.Medications = append(rec.Medications, m)
		}
	}
	if !found {
		return nil, fmt.Errorf("record has no Patient resource")
	}
	return rec, nil
}

func (r *Record) ID() string { return r.Patient.ID }

// Demographics renders the patient banner. Age is computed against now.
func (r *Record) Demographics(now time.Time) Demographics {
	d := Demographics{ID: r.Patient.ID, Sex: strings.ToLower(r.Patient.Gender)}
	if len(r.Patient.Name) > 0 {
		n := r.Patient.Name[0]
		if len(n.Given) > 0 {
			d.Given = n.Given[0]
		}
		d.Family = string(n.Family)
	}
	if r.Patient.BirthDate != "" {
		if born, err := fhir.ParseDate(r.Patient.BirthDate); err == nil {
			age := AgeAt(born, now)
			d.BirthDate = &born
			d.Age = &age
		}
	}
	return d
}

// Series returns the time-ordered history of a feature. Observations without
// a parseable effective date or numeric value are skipped.
func (r *Record) Series(f Feature) Series {
	codes := featureCodes[f]
	s := Series{Feature: f}
	for _, o := range r.Observations {
		at, ok := effectiveTime(o)
		if !ok {
			continue
		}
		if o.Code.HasCode(codes...) {
			if p, ok := quantityPoint(o.ValueQuantity, at); ok {
				s.Points = append(s.Points, p)
			}
			continue
		}
		if o.Code.HasCode(bpPanelCodes...) {
			for _, comp := range o.Component {
				if comp.Code.HasCode(codes...) {
					if p, ok := quantityPoint(comp.ValueQuantity, at); ok {
						s.Points = append(s.Points, p)
					}
				}
			}
		}
	}
	sort.SliceStable(s.Points, func(i, j int) bool { return s.Points[i].Time.Before(s.Points[j].Time) })
	return s
}

// Latest returns the most recent value of a feature.
func (r *Record) Latest(f Feature) (Point, bool) {
	return r.Series(f).Latest()
}

var currentSmokerCodes = []string{
	"449868002",       // current every day smoker
	"428041000124106", // current some day smoker
	"77176002",        // smoker, current status unknown
	"428071000124103", // current heavy tobacco smoker
	"428061000124105", // current light tobacco smoker
}

// IsSmoker reports whether the latest smoking-status observation records a
// current smoker.
func (r *Record) IsSmoker() bool {
	var latest *fhir.Observation
	var latestAt time.Time
	for i := range r.Observations {
		o := &r.Observations[i]
		if !o.Code.HasCode(smokingStatusCode) || o.ValueCodeableConcept == nil {
			continue
		}
		at, _ := effectiveTime(*o)
		if latest == nil || !at.Before(latestAt) {
			latest, latestAt = o, at
		}
	}
	if latest == nil {
		return false
	}
	if latest.ValueCodeableConcept.HasCode(currentSmokerCodes...) {
		return true
	}
	label := strings.ToLower(latest.ValueCodeableConcept.Label())
	return strings.Contains(label, "current")
}

var diabetesCodes = []string{"44054006", "73211009", "46635009", "E10", "E11", "250.00", "250.01"}

// HasDiabetes reports an active, non-refuted diabetes diagnosis.
func (r *Record) HasDiabetes() bool {
	for _, c := range r.Conditions {
		switch strings.ToLower(string(c.ClinicalStatus)) {
		case "resolved", "inactive", "remission":
			continue
		}
		switch strings.ToLower(string(c.VerificationStatus)) {
		case "refuted", "entered-in-error":
			continue
		}
		if c.Code.HasCode(diabetesCodes...) || strings.Contains(strings.ToLower(c.Code.Label()), "diabetes") {
			return true
		}
	}
	return false
}

// Antihypertensive ingredient names matched against medication labels.
var antihypertensives = []string{
	"lisinopril", "enalapril", "ramipril", "benazepril", "captopril",
	"losartan", "valsartan", "irbesartan", "olmesartan", "candesartan",
	"amlodipine", "nifedipine", "diltiazem", "verapamil",
	"hydrochlorothiazide", "chlorthalidone", "indapamide", "furosemide", "spironolactone",
	"metoprolol", "atenolol", "carvedilol", "propranolol", "bisoprolol", "labetalol",
	"clonidine", "hydralazine",
}

// OnBPMedication reports an antihypertensive still being taken: any status
// except stopped, cancelled, completed or entered-in-error. A completed
// statement or request describes a course that has ended.
func (r *Record) OnBPMedication() bool {
	for _, m := range r.Medications {
		switch strings.ToLower(m.Status) {
		case "stopped", "cancelled", "entered-in-error", "completed":
			continue
		}
		if m.MedicationCodeableConcept == nil {
			continue
		}
		label := strings.ToLower(m.MedicationCodeableConcept.Label())
		for _, name := range antihypertensives {
			if strings.Contains(label, name) {
				return true
			}
		}
	}
	return false
}

// RiskCovariates extracts the pooled-cohort inputs. Missing measurements are
// left nil.
func (r *Record) RiskCovariates(now time.Time) RiskCovariates {
	d := r.Demographics(now)
	rc := RiskCovariates{
		Age:       d.Age,
		Sex:       d.Sex,
		BPTreated: r.OnBPMedication(),
		Smoker:    r.IsSmoker(),
		Diabetic:  r.HasDiabetes(),
	}
	if p, ok := r.Latest(TotalCholesterol); ok {
		v := p.Value
		rc.TotalCholesterol = &v
	}
	if p, ok := r.Latest(HDLCholesterol); ok {
		v := p.Value
		rc.HDLCholesterol = &v
	}
	if p, ok := r.Latest(SystolicBP); ok {
		v := p.Value
		rc.SystolicBP = &v
	}
	return rc
}

func effectiveTime(o fhir.Observation) (time.Time, bool) {
	raw := o.EffectiveDateTime
	if raw == "" {
		raw = o.Issued
	}
	if raw == "" {
		return time.Time{}, false
	}
	t, err := fhir.ParseDate(raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func quantityPoint(q *fhir.Quantity, at time.Time) (Point, bool) {
	if q == nil || q.Value == nil {
		return Point{}, false
	}
	unit := q.Unit
	if unit == "" {
		unit = q.Code
	}
	return Point{Time: at, Value: *q.Value, Unit: unit}, true
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
