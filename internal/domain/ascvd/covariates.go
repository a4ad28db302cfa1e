package ascvd

import (
	"github.com/cardicare/cardicare/internal/domain/patient"
)

// FromCovariates builds an Input from record covariates. Every measurement
// the equations need must be present; absent ones are reported together in
// an *InputError.
func FromCovariates(rc patient.RiskCovariates) (Input, error) {
	var missing []string
	if rc.Age == nil {
		missing = append(missing, "age")
	}
	if rc.Sex == "" {
		missing = append(missing, "sex")
	}
	if rc.TotalCholesterol == nil {
		missing = append(missing, "total_cholesterol")
	}
	if rc.HDLCholesterol == nil {
		missing = append(missing, "hdl_cholesterol")
	}
	if rc.SystolicBP == nil {
		missing = append(missing, "systolic_bp")
	}
	if len(missing) > 0 {
		return Input{}, &InputError{Missing: missing}
	}
	return Input{
		Age:              *rc.Age,
		Sex:              rc.Sex,
		TotalCholesterol: *rc.TotalCholesterol,
		HDLCholesterol:   *rc.HDLCholesterol,
		SystolicBP:       *rc.SystolicBP,
		BPTreated:        rc.BPTreated,
		Smoker:           rc.Smoker,
		Diabetic:         rc.Diabetic,
	}, nil
}
