package ascvd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Sex selects the coefficient table.
type Sex string

const (
	Male   Sex = "male"
	Female Sex = "female"
)

// ParseSex accepts "male" and "female" in any case. The second return value
// is false for anything else.
func ParseSex(s string) (Sex, bool) {
	switch Sex(strings.ToLower(strings.TrimSpace(s))) {
	case Male:
		return Male, true
	case Female:
		return Female, true
	}
	return "", false
}

// Input holds the pooled-cohort covariates for one calculation.
type Input struct {
	Age              int     `json:"age"`
	Sex              string  `json:"sex"`
	TotalCholesterol float64 `json:"total_cholesterol"`
	HDLCholesterol   float64 `json:"hdl_cholesterol"`
	SystolicBP       float64 `json:"systolic_bp"`
	BPTreated        bool    `json:"is_bp_treated"`
	Smoker           bool    `json:"is_smoker"`
	Diabetic         bool    `json:"has_diabetes"`
}

// Status tags an Outcome.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Outcome is the result of a risk calculation: a percentage when Status is
// StatusOK, otherwise a validation message and no score.
type Outcome struct {
	Status  Status  `json:"status"`
	Percent float64 `json:"-"`
	Message string  `json:"message,omitempty"`
}

func scored(percent float64) Outcome {
	return Outcome{Status: StatusOK, Percent: percent}
}

func warning(msg string) Outcome {
	return Outcome{Status: StatusWarning, Message: msg}
}

func validationError(msg string) Outcome {
	return Outcome{Status: StatusError, Message: msg}
}

// Score returns the risk percentage and true only for StatusOK outcomes.
func (o Outcome) Score() (float64, bool) {
	if o.Status != StatusOK {
		return 0, false
	}
	return o.Percent, true
}

// Display renders the score with one decimal place, or "" when there is no score.
func (o Outcome) Display() string {
	p, ok := o.Score()
	if !ok {
		return ""
	}
	return decimal.NewFromFloat(p).StringFixed(1)
}

// Category returns the risk band for the score, or "" when there is no score.
func (o Outcome) Category() RiskCategory {
	p, ok := o.Score()
	if !ok {
		return ""
	}
	return Categorize(p)
}

// RiskCategory is the 10-year ASCVD risk band.
type RiskCategory string

const (
	CategoryLow          RiskCategory = "Low"
	CategoryBorderline   RiskCategory = "Borderline"
	CategoryIntermediate RiskCategory = "Intermediate"
	CategoryHigh         RiskCategory = "High"
)

// Category thresholds, in percent.
const (
	BorderlineThreshold   = 5.0
	IntermediateThreshold = 7.5
	HighThreshold         = 20.0
)

func Categorize(percent float64) RiskCategory {
	switch {
	case percent < BorderlineThreshold:
		return CategoryLow
	case percent < IntermediateThreshold:
		return CategoryBorderline
	case percent < HighThreshold:
		return CategoryIntermediate
	default:
		return CategoryHigh
	}
}

// InputError reports covariates that are absent from a patient record.
type InputError struct {
	Missing []string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("missing risk inputs: %s", strings.Join(e.Missing, ", "))
}
