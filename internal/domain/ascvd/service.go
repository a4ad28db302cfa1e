package ascvd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cardicare/cardicare/internal/domain/patient"
	"github.com/cardicare/cardicare/internal/platform/fhir"
)

// CovariateSource looks up the risk covariates recorded for a patient.
type CovariateSource interface {
	RiskCovariates(ctx context.Context, patientID string) (*patient.RiskCovariates, error)
}

// Assessment is one scored (or refused) calculation.
type Assessment struct {
	ID         uuid.UUID    `json:"id"`
	PatientID  string       `json:"patient_id,omitempty"`
	Input      Input        `json:"input"`
	Status     Status       `json:"status"`
	Message    string       `json:"message,omitempty"`
	Score      *float64     `json:"score,omitempty"`
	Display    string       `json:"display,omitempty"`
	Category   RiskCategory `json:"category,omitempty"`
	Breakdown  *Breakdown   `json:"breakdown,omitempty"`
	AssessedAt time.Time    `json:"assessed_at"`
}

// Outcome returns the calculation result the assessment was built from.
func (a *Assessment) Outcome() Outcome {
	o := Outcome{Status: a.Status, Message: a.Message}
	if a.Score != nil {
		o.Percent = *a.Score
	}
	return o
}

type Service struct {
	calc     *Calculator
	patients CovariateSource
	now      func() time.Time
}

func NewService(calc *Calculator, patients CovariateSource) *Service {
	return &Service{calc: calc, patients: patients, now: time.Now}
}

// Calculate scores a caller-supplied input.
func (s *Service) Calculate(in Input) *Assessment {
	breakdown, out := s.calc.Explain(in)
	a := &Assessment{
		ID:         uuid.New(),
		Input:      in,
		Status:     out.Status,
		Message:    out.Message,
		Breakdown:  breakdown,
		AssessedAt: s.now().UTC(),
	}
	if p, ok := out.Score(); ok {
		a.Score = &p
		a.Display = out.Display()
		a.Category = out.Category()
	}
	return a
}

// AssessPatient scores the covariates recorded for a patient. A record that
// lacks a measurement yields an *InputError.
func (s *Service) AssessPatient(ctx context.Context, patientID string) (*Assessment, error) {
	rc, err := s.patients.RiskCovariates(ctx, patientID)
	if err != nil {
		return nil, err
	}
	in, err := FromCovariates(*rc)
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", patientID, err)
	}
	a := s.Calculate(in)
	a.PatientID = patientID
	return a, nil
}

const (
	methodSystem = "http://cardicare.example/risk-method"
	methodCode   = "pooled-cohort-ascvd"
)

// ToFHIR renders the assessment as a FHIR RiskAssessment. Refused
// calculations are reported as cancelled with the reason in a note.
func (a *Assessment) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType":       "RiskAssessment",
		"id":                 a.ID.String(),
		"status":             "final",
		"occurrenceDateTime": a.AssessedAt.Format(time.RFC3339),
		"meta":               fhir.Meta{LastUpdated: a.AssessedAt},
		"code":               fhir.CodeableConcept{Text: "10-year ASCVD risk"},
	}
	result["method"] = fhir.CodeableConcept{
		Coding: []fhir.Coding{{System: methodSystem, Code: methodCode, Display: "Pooled Cohort Equations"}},
	}
	if a.PatientID != "" {
		result["subject"] = fhir.Reference{Reference: fhir.FormatReference("Patient", a.PatientID)}
	}
	if a.Score == nil {
		result["status"] = "cancelled"
		result["note"] = []map[string]string{{"text": a.Message}}
		return result
	}
	prediction := map[string]interface{}{
		"outcome":            fhir.CodeableConcept{Text: "Atherosclerotic cardiovascular disease event"},
		"probabilityDecimal": *a.Score / 100,
		"qualitativeRisk":    fhir.CodeableConcept{Coding: []fhir.Coding{{Display: string(a.Category)}}},
		"whenRange":          map[string]interface{}{"high": map[string]interface{}{"value": 10, "unit": "years"}},
	}
	result["prediction"] = []interface{}{prediction}
	return result
}
