// Package ascvd computes the 10-year atherosclerotic cardiovascular disease
// risk with the sex-specific pooled-cohort equations.
package ascvd

import (
	"fmt"
	"math"
)

// Validation bounds. Age and sex are hard limits; the remaining ranges are
// "typical" limits that produce a warning with no score.
const (
	MinAge = 40
	MaxAge = 79

	MinTotalCholesterol = 130.0
	MaxTotalCholesterol = 320.0
	MinHDLCholesterol   = 20.0
	MaxHDLCholesterol   = 100.0
	MinSystolicBP       = 90.0
	MaxSystolicBP       = 200.0
)

// Coefficients is one sex-specific table of the pooled-cohort model.
type Coefficients struct {
	LnAge            float64
	LnAgeSquared     float64
	LnTotalChol      float64
	LnAgeTotalChol   float64
	LnHDL            float64
	LnAgeHDL         float64
	LnTreatedSBP     float64
	LnUntreatedSBP   float64
	Smoker           float64
	LnAgeSmoker      float64
	Diabetes         float64
	BaselineSurvival float64
	MeanTerm         float64
}

// MaleCoefficients returns the table for men. The male model has no
// ln(age)^2 term.
func MaleCoefficients() Coefficients {
	return Coefficients{
		LnAge:            12.344,
		LnTotalChol:      11.853,
		LnAgeTotalChol:   -2.664,
		LnHDL:            -7.990,
		LnAgeHDL:         1.769,
		LnTreatedSBP:     1.797,
		LnUntreatedSBP:   1.764,
		Smoker:           7.837,
		LnAgeSmoker:      -1.795,
		Diabetes:         0.658,
		BaselineSurvival: 0.9144,
		MeanTerm:         61.18,
	}
}

// FemaleCoefficients returns the table for women.
func FemaleCoefficients() Coefficients {
	return Coefficients{
		LnAge:            -29.799,
		LnAgeSquared:     4.884,
		LnTotalChol:      13.540,
		LnAgeTotalChol:   -3.114,
		LnHDL:            -13.578,
		LnAgeHDL:         3.149,
		LnTreatedSBP:     2.019,
		LnUntreatedSBP:   1.957,
		Smoker:           7.574,
		LnAgeSmoker:      -1.655,
		Diabetes:         0.661,
		BaselineSurvival: 0.9665,
		MeanTerm:         -29.18,
	}
}

func (c Coefficients) validate() error {
	if !(c.BaselineSurvival > 0 && c.BaselineSurvival < 1) {
		return fmt.Errorf("baseline survival must be in (0,1), got %v", c.BaselineSurvival)
	}
	for _, v := range []float64{
		c.LnAge, c.LnAgeSquared, c.LnTotalChol, c.LnAgeTotalChol, c.LnHDL, c.LnAgeHDL,
		c.LnTreatedSBP, c.LnUntreatedSBP, c.Smoker, c.LnAgeSmoker, c.Diabetes, c.MeanTerm,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("coefficient table contains a non-finite value")
		}
	}
	return nil
}

// Calculator evaluates the pooled-cohort equations. It holds only immutable
// tables and is safe for concurrent use.
type Calculator struct {
	male   Coefficients
	female Coefficients
}

// NewCalculator returns a calculator with the published coefficient tables.
func NewCalculator() *Calculator {
	c, err := NewCalculatorWithTables(MaleCoefficients(), FemaleCoefficients())
	if err != nil {
		panic(fmt.Sprintf("ascvd: built-in coefficients are invalid: %v", err))
	}
	return c
}

// NewCalculatorWithTables returns a calculator with caller-supplied tables.
func NewCalculatorWithTables(male, female Coefficients) (*Calculator, error) {
	if err := male.validate(); err != nil {
		return nil, fmt.Errorf("male table: %w", err)
	}
	if err := female.validate(); err != nil {
		return nil, fmt.Errorf("female table: %w", err)
	}
	return &Calculator{male: male, female: female}, nil
}

func (c *Calculator) table(sex Sex) Coefficients {
	if sex == Female {
		return c.female
	}
	return c.male
}

// Validate returns the first failing check as a non-OK Outcome, or an OK
// outcome with no score when every check passes.
func Validate(in Input) Outcome {
	if in.Age < MinAge || in.Age > MaxAge {
		return validationError("Age must be between 40 and 79 years for ASCVD risk calculation")
	}
	if _, ok := ParseSex(in.Sex); !ok {
		return validationError(`Sex must be "male" or "female"`)
	}
	if in.TotalCholesterol < MinTotalCholesterol || in.TotalCholesterol > MaxTotalCholesterol {
		return warning("Total cholesterol outside typical range (130-320 mg/dL)")
	}
	if in.HDLCholesterol < MinHDLCholesterol || in.HDLCholesterol > MaxHDLCholesterol {
		return warning("HDL cholesterol outside typical range (20-100 mg/dL)")
	}
	if in.SystolicBP < MinSystolicBP || in.SystolicBP > MaxSystolicBP {
		return warning("Systolic blood pressure outside typical range (90-200 mmHg)")
	}
	return Outcome{Status: StatusOK}
}

// Compute returns the 10-year risk percentage, or the first validation
// failure. Warnings block the score. The percentage is not clamped.
func (c *Calculator) Compute(in Input) Outcome {
	_, out := c.Explain(in)
	return out
}

// Term is one weighted covariate of the linear predictor.
type Term struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Coefficient  float64 `json:"coefficient"`
	Contribution float64 `json:"contribution"`
}

// Breakdown lists the linear predictor terms behind a score.
type Breakdown struct {
	Terms           []Term  `json:"terms"`
	LinearPredictor float64 `json:"linear_predictor"`
	MeanTerm        float64 `json:"mean_term"`
	BaselineSurv    float64 `json:"baseline_survival"`
}

// Explain computes the score together with its per-term contributions.
// The breakdown is nil when validation fails.
func (c *Calculator) Explain(in Input) (*Breakdown, Outcome) {
	if v := Validate(in); v.Status != StatusOK {
		return nil, v
	}
	sex, _ := ParseSex(in.Sex)
	coef := c.table(sex)

	lnAge := math.Log(float64(in.Age))
	lnTC := math.Log(in.TotalCholesterol)
	lnHDL := math.Log(in.HDLCholesterol)
	lnSBP := math.Log(in.SystolicBP)

	terms := make([]Term, 0, 11)
	add := func(name string, value, coefficient float64) {
		terms = append(terms, Term{Name: name, Value: value, Coefficient: coefficient, Contribution: coefficient * value})
	}

	add("ln_age", lnAge, coef.LnAge)
	if sex == Female {
		add("ln_age_squared", lnAge*lnAge, coef.LnAgeSquared)
	}
	add("ln_total_chol", lnTC, coef.LnTotalChol)
	add("ln_age_total_chol", lnAge*lnTC, coef.LnAgeTotalChol)
	add("ln_hdl", lnHDL, coef.LnHDL)
	add("ln_age_hdl", lnAge*lnHDL, coef.LnAgeHDL)
	if in.BPTreated {
		add("ln_treated_systolic_bp", lnSBP, coef.LnTreatedSBP)
	} else {
		add("ln_untreated_systolic_bp", lnSBP, coef.LnUntreatedSBP)
	}
	add("current_smoker", indicator(in.Smoker), coef.Smoker)
	ageSmoker := 0.0
	if in.Smoker {
		ageSmoker = lnAge
	}
	add("ln_age_smoker", ageSmoker, coef.LnAgeSmoker)
	add("diabetes", indicator(in.Diabetic), coef.Diabetes)

	var predict float64
	for _, t := range terms {
		predict += t.Contribution
	}

	risk := (1 - math.Pow(coef.BaselineSurvival, math.Exp(predict-coef.MeanTerm))) * 100

	return &Breakdown{
		Terms:           terms,
		LinearPredictor: predict,
		MeanTerm:        coef.MeanTerm,
		BaselineSurv:    coef.BaselineSurvival,
	}, scored(risk)
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
