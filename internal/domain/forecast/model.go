// Package forecast projects short-horizon trends of patient vitals with an
// ARIMA(1,1,2) model fitted per request.
package forecast

import (
	"errors"
	"fmt"
)

const (
	MinHorizon = 1
	MaxHorizon = 30
)

var (
	ErrPatientNotFound  = errors.New("patient id not found")
	ErrInsufficientData = errors.New("not enough data to forecast")
	ErrHorizon          = errors.New("horizon out of range")
)

// Diagnostics reported to callers in place of forecast values.
const (
	DiagPatientNotFound  = "Patient ID not found."
	DiagInsufficientData = "Not enough data to do prediction."
	DiagHorizon          = "Horizon must be between 1 and 30 days."
)

// FitError wraps any failure of the model fit.
type FitError struct {
	Err error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("model fitting failed: %v", e.Err)
}

func (e *FitError) Unwrap() error { return e.Err }

// Request asks for Horizon daily forecasts of one feature.
type Request struct {
	PatientID string `json:"patient_id"`
	Feature   string `json:"feature"`
	Horizon   int    `json:"horizon"`
}

// Result holds exactly Horizon values, or a diagnostic and no values.
type Result struct {
	PatientID  string    `json:"patient_id"`
	Feature    string    `json:"feature"`
	Horizon    int       `json:"horizon"`
	Values     []float64 `json:"values,omitempty"`
	Unit       string    `json:"unit,omitempty"`
	Diagnostic string    `json:"diagnostic,omitempty"`

	err error
}

// Err returns the failure behind a diagnostic, or nil.
func (r Result) Err() error { return r.err }

func (r Result) OK() bool { return r.err == nil }

func (r Request) failed(err error) Result {
	res := Result{PatientID: r.PatientID, Feature: r.Feature, Horizon: r.Horizon, err: err}
	res.Diagnostic = diagnostic(err)
	return res
}

func diagnostic(err error) string {
	var fitErr *FitError
	switch {
	case errors.Is(err, ErrPatientNotFound):
		return DiagPatientNotFound
	case errors.Is(err, ErrInsufficientData):
		return DiagInsufficientData
	case errors.Is(err, ErrHorizon):
		return DiagHorizon
	case errors.As(err, &fitErr):
		return "Model fitting failed: " + fitErr.Err.Error()
	}
	return "Model fitting failed: " + err.Error()
}
