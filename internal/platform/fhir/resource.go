package fhir

import (
	"fmt"
	"strings"
	"time"

	"github.com/cardicare/cardicare/internal/platform/codec"
)

// Resource is the base FHIR resource header, enough to route a raw entry.
type Resource struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	Meta         *Meta  `json:"meta,omitempty"`
}

type Meta struct {
	VersionID   string    `json:"versionId,omitempty"`
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
	Profile     []string  `json:"profile,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// HasCode reports whether any coding carries one of the given codes.
func (cc CodeableConcept) HasCode(codes ...string) bool {
	for _, c := range cc.Coding {
		for _, want := range codes {
			if c.Code == want {
				return true
			}
		}
	}
	return false
}

// Label returns the concept text, falling back to the first coding display.
func (cc CodeableConcept) Label() string {
	if cc.Text != "" {
		return cc.Text
	}
	for _, c := range cc.Coding {
		if c.Display != "" {
			return c.Display
		}
	}
	return ""
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

// FlexString decodes either a JSON string or an array of strings. Older
// (DSTU2) exports carry HumanName.family as an array.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var parts []string
		if err := codec.Unmarshal(data, &parts); err != nil {
			return err
		}
		*f = FlexString(strings.Join(parts, " "))
		return nil
	}
	if trimmed == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := codec.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = FlexString(s)
	return nil
}

// FlexCode decodes a status that is a bare code in DSTU2 and a
// CodeableConcept in R4.
type FlexCode string

func (f *FlexCode) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var cc CodeableConcept
		if err := codec.Unmarshal(data, &cc); err != nil {
			return err
		}
		if len(cc.Coding) > 0 {
			*f = FlexCode(cc.Coding[0].Code)
		} else {
			*f = FlexCode(cc.Text)
		}
		return nil
	}
	if trimmed == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := codec.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = FlexCode(s)
	return nil
}

type HumanName struct {
	Use    string     `json:"use,omitempty"`
	Family FlexString `json:"family,omitempty"`
	Given  []string   `json:"given,omitempty"`
	Prefix []string   `json:"prefix,omitempty"`
	Suffix []string   `json:"suffix,omitempty"`
}

type Quantity struct {
	Value  *float64 `json:"value,omitempty"`
	Unit   string   `json:"unit,omitempty"`
	System string   `json:"system,omitempty"`
	Code   string   `json:"code,omitempty"`
}

type Period struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Patient is the subset of the FHIR Patient resource the dashboard reads.
type Patient struct {
	ResourceType string      `json:"resourceType"`
	ID           string      `json:"id"`
	Name         []HumanName `json:"name,omitempty"`
	Gender       string      `json:"gender,omitempty"`
	BirthDate    string      `json:"birthDate,omitempty"`
}

type ObservationComponent struct {
	Code          CodeableConcept `json:"code"`
	ValueQuantity *Quantity       `json:"valueQuantity,omitempty"`
}

// Observation is the subset of the FHIR Observation resource the dashboard reads.
type Observation struct {
	ResourceType         string                 `json:"resourceType"`
	ID                   string                 `json:"id"`
	Status               string                 `json:"status,omitempty"`
	Code                 CodeableConcept        `json:"code"`
	Subject              *Reference             `json:"subject,omitempty"`
	EffectiveDateTime    string                 `json:"effectiveDateTime,omitempty"`
	Issued               string                 `json:"issued,omitempty"`
	ValueQuantity        *Quantity              `json:"valueQuantity,omitempty"`
	ValueCodeableConcept *CodeableConcept       `json:"valueCodeableConcept,omitempty"`
	Component            []ObservationComponent `json:"component,omitempty"`
}

// Condition is the subset of the FHIR Condition resource the dashboard reads.
type Condition struct {
	ResourceType       string          `json:"resourceType"`
	ID                 string          `json:"id"`
	Code               CodeableConcept `json:"code"`
	ClinicalStatus     FlexCode        `json:"clinicalStatus,omitempty"`
	VerificationStatus FlexCode        `json:"verificationStatus,omitempty"`
}

// Medication covers MedicationStatement, MedicationDispense, MedicationOrder
// and MedicationRequest, which share the fields the dashboard needs.
type Medication struct {
	ResourceType              string           `json:"resourceType"`
	ID                        string           `json:"id"`
	Status                    string           `json:"status,omitempty"`
	MedicationCodeableConcept *CodeableConcept `json:"medicationCodeableConcept,omitempty"`
}

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string           `json:"severity"`
	Code        string           `json:"code"`
	Details     *CodeableConcept `json:"details,omitempty"`
	Diagnostics string           `json:"diagnostics,omitempty"`
	Expression  []string         `json:"expression,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    severity,
				Code:        code,
				Diagnostics: diagnostics,
			},
		},
	}
}

func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome("error", "processing", diagnostics)
}

func NotFoundOutcome(resourceType, id string) *OperationOutcome {
	return NewOperationOutcome("error", "not-found", resourceType+"/"+id+" not found")
}

func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseDate parses the FHIR date and dateTime forms.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised FHIR date %q", s)
}
