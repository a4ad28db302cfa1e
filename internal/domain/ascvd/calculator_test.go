package ascvd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseInput(sex string) Input {
	return Input{Age: 55, Sex: sex, TotalCholesterol: 213, HDLCholesterol: 50, SystolicBP: 120}
}

func TestCompute_ReferenceValues(t *testing.T) {
	calc := NewCalculator()

	treated := func(in Input) Input { in.BPTreated = true; return in }

	tests := []struct {
		name string
		in   Input
		want float64
	}{
		{"male untreated", baseInput("male"), 5.384421997908639},
		{"female untreated", baseInput("female"), 2.052229820249485},
		{"male treated", treated(baseInput("male")), 6.276472892388096},
		{"female treated", treated(baseInput("female")), 2.7516012042373306},
		{"male all flags", Input{Age: 60, Sex: "male", TotalCholesterol: 240, HDLCholesterol: 40, SystolicBP: 150,
			BPTreated: true, Smoker: true, Diabetic: true}, 46.259076361678865},
		{"female low risk", Input{Age: 40, Sex: "female", TotalCholesterol: 130, HDLCholesterol: 100, SystolicBP: 90},
			0.03709739617920871},
		{"male upper bounds", Input{Age: 79, Sex: "male", TotalCholesterol: 320, HDLCholesterol: 20, SystolicBP: 200,
			BPTreated: true, Smoker: true, Diabetic: true}, 92.71522918124454},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := calc.Compute(tt.in)
			got, ok := out.Score()
			require.True(t, ok, "expected a score, got %+v", out)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCompute_SexIsCaseInsensitive(t *testing.T) {
	calc := NewCalculator()
	a, _ := calc.Compute(baseInput("male")).Score()
	b, _ := calc.Compute(baseInput(" MALE ")).Score()
	assert.Equal(t, a, b)
}

func TestCompute_ValidationOrder(t *testing.T) {
	calc := NewCalculator()

	tests := []struct {
		name    string
		mutate  func(*Input)
		status  Status
		message string
	}{
		{"age too low", func(in *Input) { in.Age = 39 }, StatusError,
			"Age must be between 40 and 79 years for ASCVD risk calculation"},
		{"age too high", func(in *Input) { in.Age = 80 }, StatusError,
			"Age must be between 40 and 79 years for ASCVD risk calculation"},
		{"age before sex", func(in *Input) { in.Age = 30; in.Sex = "other" }, StatusError,
			"Age must be between 40 and 79 years for ASCVD risk calculation"},
		{"bad sex", func(in *Input) { in.Sex = "unknown" }, StatusError,
			`Sex must be "male" or "female"`},
		{"sex before cholesterol", func(in *Input) { in.Sex = ""; in.TotalCholesterol = 50 }, StatusError,
			`Sex must be "male" or "female"`},
		{"total cholesterol", func(in *Input) { in.TotalCholesterol = 321 }, StatusWarning,
			"Total cholesterol outside typical range (130-320 mg/dL)"},
		{"cholesterol before hdl", func(in *Input) { in.TotalCholesterol = 100; in.HDLCholesterol = 5 }, StatusWarning,
			"Total cholesterol outside typical range (130-320 mg/dL)"},
		{"hdl", func(in *Input) { in.HDLCholesterol = 19.9 }, StatusWarning,
			"HDL cholesterol outside typical range (20-100 mg/dL)"},
		{"hdl before sbp", func(in *Input) { in.HDLCholesterol = 101; in.SystolicBP = 300 }, StatusWarning,
			"HDL cholesterol outside typical range (20-100 mg/dL)"},
		{"systolic", func(in *Input) { in.SystolicBP = 89 }, StatusWarning,
			"Systolic blood pressure outside typical range (90-200 mmHg)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput("female")
			tt.mutate(&in)
			out := calc.Compute(in)
			assert.Equal(t, tt.status, out.Status)
			assert.Equal(t, tt.message, out.Message)
			_, ok := out.Score()
			assert.False(t, ok, "no score may accompany a %s", out.Status)
		})
	}
}

func TestCompute_BoundsInclusive(t *testing.T) {
	calc := NewCalculator()
	for _, in := range []Input{
		{Age: 40, Sex: "male", TotalCholesterol: 130, HDLCholesterol: 20, SystolicBP: 90},
		{Age: 79, Sex: "female", TotalCholesterol: 320, HDLCholesterol: 100, SystolicBP: 200},
	} {
		_, ok := calc.Compute(in).Score()
		assert.True(t, ok, "expected %+v to be scored", in)
	}
}

func TestCompute_MonotoneInSmoking(t *testing.T) {
	calc := NewCalculator()
	for _, sex := range []string{"male", "female"} {
		in := baseInput(sex)
		base, _ := calc.Compute(in).Score()
		in.Smoker = true
		smoker, _ := calc.Compute(in).Score()
		assert.Greater(t, smoker, base, sex)
	}
}

func TestExplain_TermsSumToPredictor(t *testing.T) {
	calc := NewCalculator()

	b, out := calc.Explain(baseInput("female"))
	require.Equal(t, StatusOK, out.Status)
	require.NotNil(t, b)

	var sum float64
	names := make([]string, 0, len(b.Terms))
	for _, term := range b.Terms {
		sum += term.Contribution
		names = append(names, term.Name)
	}
	assert.InDelta(t, b.LinearPredictor, sum, 1e-12)
	assert.Contains(t, names, "ln_age_squared")
	assert.Contains(t, names, "ln_untreated_systolic_bp")
	assert.NotContains(t, names, "ln_treated_systolic_bp")

	b, _ = calc.Explain(baseInput("male"))
	for _, term := range b.Terms {
		assert.NotEqual(t, "ln_age_squared", term.Name)
	}
}

func TestExplain_NilOnValidationFailure(t *testing.T) {
	b, out := NewCalculator().Explain(Input{Age: 20, Sex: "male"})
	assert.Nil(t, b)
	assert.Equal(t, StatusError, out.Status)
}

func TestNewCalculatorWithTables_Invalid(t *testing.T) {
	bad := MaleCoefficients()
	bad.BaselineSurvival = 1
	_, err := NewCalculatorWithTables(bad, FemaleCoefficients())
	assert.Error(t, err)

	bad = FemaleCoefficients()
	bad.LnHDL = math.NaN()
	_, err = NewCalculatorWithTables(MaleCoefficients(), bad)
	assert.Error(t, err)

	bad = MaleCoefficients()
	bad.BaselineSurvival = 0
	_, err = NewCalculatorWithTables(bad, FemaleCoefficients())
	assert.Error(t, err)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		percent float64
		want    RiskCategory
	}{
		{0, CategoryLow},
		{4.99, CategoryLow},
		{5, CategoryBorderline},
		{7.49, CategoryBorderline},
		{7.5, CategoryIntermediate},
		{19.99, CategoryIntermediate},
		{20, CategoryHigh},
		{92.7, CategoryHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Categorize(tt.percent), "Categorize(%v)", tt.percent)
	}
}

func TestOutcome_Display(t *testing.T) {
	out := NewCalculator().Compute(baseInput("male"))
	assert.Equal(t, "5.4", out.Display())
	assert.Equal(t, CategoryBorderline, out.Category())

	refused := Outcome{Status: StatusWarning, Message: "x"}
	assert.Equal(t, "", refused.Display())
	assert.Equal(t, RiskCategory(""), refused.Category())
}
