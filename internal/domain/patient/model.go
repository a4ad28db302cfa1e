package patient

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by repositories for unknown patient ids.
var ErrNotFound = errors.New("patient not found")

// Feature names a vital sign or lab series. The string values match the
// feature column of the historical forecasting dataset.
type Feature string

const (
	Weight           Feature = "weight"
	Height           Feature = "height"
	BMI              Feature = "bmi"
	SystolicBP       Feature = "Systolic blood pressure"
	DiastolicBP      Feature = "Diastolic blood pressure"
	HeartRate        Feature = "heart_rate"
	Glucose          Feature = "glucose"
	TotalCholesterol Feature = "total_cholesterol"
	HDLCholesterol   Feature = "hdl_cholesterol"
)

// Features lists every series the dashboard can chart, in display order.
var Features = []Feature{
	Weight, Height, BMI, SystolicBP, DiastolicBP, HeartRate, Glucose, TotalCholesterol, HDLCholesterol,
}

// LOINC codes per feature.
var featureCodes = map[Feature][]string{
	Weight:           {"29463-7", "3141-9"},
	Height:           {"8302-2", "8306-3"},
	BMI:              {"39156-5"},
	SystolicBP:       {"8480-6"},
	DiastolicBP:      {"8462-4"},
	HeartRate:        {"8867-4"},
	Glucose:          {"2339-0", "2345-7"},
	TotalCholesterol: {"2093-3"},
	HDLCholesterol:   {"2085-9"},
}

// Blood-pressure panels carry systolic and diastolic values as components.
var bpPanelCodes = []string{"55284-4", "85354-9"}

const smokingStatusCode = "72166-2"

// ParseFeature resolves a feature by its name, case-insensitively.
func ParseFeature(s string) (Feature, bool) {
	for _, f := range Features {
		if strings.EqualFold(string(f), strings.TrimSpace(s)) {
			return f, true
		}
	}
	return "", false
}

// Point is one observation value.
type Point struct {
	Time  time.Time `json:"date"`
	Value float64   `json:"value"`
	Unit  string    `json:"unit,omitempty"`
}

// Display renders the value with its unit, as shown in the vitals panel.
func (p Point) Display() string {
	return strings.TrimSpace(formatValue(p.Value) + " " + p.Unit)
}

// Series is the time-ordered history of one feature for one patient. Two
// points may share a timestamp.
type Series struct {
	Feature Feature `json:"feature"`
	Points  []Point `json:"points"`
}

// Values returns the raw values in time order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Latest returns the most recent point.
func (s Series) Latest() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Demographics is the patient banner.
type Demographics struct {
	ID        string     `json:"id"`
	Given     string     `json:"given"`
	Family    string     `json:"family"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Age       *int       `json:"age,omitempty"`
	Sex       string     `json:"sex,omitempty"`
}

func (d Demographics) FullName() string {
	return strings.TrimSpace(d.Given + " " + d.Family)
}

// RiskCovariates are the pooled-cohort inputs extracted from a record. Any
// pointer may be nil when the record lacks the measurement.
type RiskCovariates struct {
	Age              *int     `json:"age,omitempty"`
	Sex              string   `json:"sex,omitempty"`
	TotalCholesterol *float64 `json:"total_cholesterol,omitempty"`
	HDLCholesterol   *float64 `json:"hdl_cholesterol,omitempty"`
	SystolicBP       *float64 `json:"systolic_bp,omitempty"`
	BPTreated        bool     `json:"is_bp_treated"`
	Smoker           bool     `json:"is_smoker"`
	Diabetic         bool     `json:"has_diabetes"`
}

// AgeAt returns the age in whole years on the given day.
func AgeAt(born, on time.Time) int {
	age := on.Year() - born.Year()
	if on.Month() < born.Month() || (on.Month() == born.Month() && on.Day() < born.Day()) {
		age--
	}
	return age
}
