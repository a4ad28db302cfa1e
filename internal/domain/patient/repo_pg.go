package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardicare/cardicare/internal/platform/fhir"
)

// PGRepository reads records from the EHR Postgres schema. It only issues
// SELECTs.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT fhir_id FROM patient WHERE active ORDER BY fhir_id`)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, id string) (*Record, error) {
	var (
		pk        string
		given     string
		family    string
		birthDate *time.Time
		gender    *string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, first_name, last_name, birth_date, gender FROM patient WHERE fhir_id = $1`, id).
		Scan(&pk, &given, &family, &birthDate, &gender)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}

	rec := &Record{Patient: fhir.Patient{
		ResourceType: "Patient",
		ID:           id,
		Name:         []fhir.HumanName{{Given: []string{given}, Family: fhir.FlexString(family)}},
	}}
	if birthDate != nil {
		rec.Patient.BirthDate = birthDate.Format("2006-01-02")
	}
	if gender != nil {
		rec.Patient.Gender = *gender
	}

	if rec.Observations, err = r.observations(ctx, pk); err != nil {
		return nil, err
	}
	if rec.Conditions, err = r.conditions(ctx, pk); err != nil {
		return nil, err
	}
	if rec.Medications, err = r.medications(ctx, pk); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *PGRepository) observations(ctx context.Context, patientPK string) ([]fhir.Observation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.fhir_id, o.code_value, o.code_display, o.effective_datetime,
			o.value_quantity, o.value_unit, o.value_codeable_code, o.value_codeable_display,
			c.code_value, c.value_quantity, c.value_unit
		FROM observation o
		LEFT JOIN observation_component c ON c.observation_id = o.id
		WHERE o.patient_id = $1::uuid AND o.status NOT IN ('entered-in-error', 'cancelled')
		ORDER BY o.effective_datetime, o.fhir_id`, patientPK)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []fhir.Observation
	index := map[string]int{}
	for rows.Next() {
		var (
			fhirID, code, display      string
			effective                  *time.Time
			value                      *float64
			unit, valueCode, valueDisp *string
			compCode, compUnit         *string
			compValue                  *float64
		)
		if err := rows.Scan(&fhirID, &code, &display, &effective, &value, &unit, &valueCode, &valueDisp,
			&compCode, &compValue, &compUnit); err != nil {
			return nil, err
		}
		i, seen := index[fhirID]
		if !seen {
			o := fhir.Observation{
				ResourceType: "Observation",
				ID:           fhirID,
				Code:         fhir.CodeableConcept{Coding: []fhir.Coding{{Code: code, Display: display}}},
			}
			if effective != nil {
				o.EffectiveDateTime = effective.Format(time.RFC3339)
			}
			if value != nil {
				o.ValueQuantity = &fhir.Quantity{Value: value, Unit: deref(unit)}
			}
			if valueCode != nil {
				o.ValueCodeableConcept = &fhir.CodeableConcept{
					Coding: []fhir.Coding{{Code: *valueCode, Display: deref(valueDisp)}},
				}
			}
			out = append(out, o)
			i = len(out) - 1
			index[fhirID] = i
		}
		if compCode != nil {
			out[i].Component = append(out[i].Component, fhir.ObservationComponent{
				Code:          fhir.CodeableConcept{Coding: []fhir.Coding{{Code: *compCode}}},
				ValueQuantity: &fhir.Quantity{Value: compValue, Unit: deref(compUnit)},
			})
		}
	}
	return out, rows.Err()
}

func (r *PGRepository) conditions(ctx context.Context, patientPK string) ([]fhir.Condition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT fhir_id, code_value, code_display, clinical_status, verification_status
		FROM condition WHERE patient_id = $1::uuid`, patientPK)
	if err != nil {
		return nil, fmt.Errorf("query conditions: %w", err)
	}
	defer rows.Close()

	var out []fhir.Condition
	for rows.Next() {
		var (
			fhirID, code, display, clinical string
			verification                    *string
		)
		if err := rows.Scan(&fhirID, &code, &display, &clinical, &verification); err != nil {
			return nil, err
		}
		out = append(out, fhir.Condition{
			ResourceType:       "Condition",
			ID:                 fhirID,
			Code:               fhir.CodeableConcept{Coding: []fhir.Coding{{Code: code, Display: display}}, Text: display},
			ClinicalStatus:     fhir.FlexCode(clinical),
			VerificationStatus: fhir.FlexCode(deref(verification)),
		})
	}
	return out, rows.Err()
}

func (r *PGRepository) medications(ctx context.Context, patientPK string) ([]fhir.Medication, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT fhir_id, status, medication_code, medication_display
		FROM medication_statement WHERE patient_id = $1::uuid`, patientPK)
	if err != nil {
		return nil, fmt.Errorf("query medication statements: %w", err)
	}
	defer rows.Close()

	var out []fhir.Medication
	for rows.Next() {
		var (
			fhirID, status string
			code, display  *string
		)
		if err := rows.Scan(&fhirID, &status, &code, &display); err != nil {
			return nil, err
		}
		out = append(out, fhir.Medication{
			ResourceType: "MedicationStatement",
			ID:           fhirID,
			Status:       status,
			MedicationCodeableConcept: &fhir.CodeableConcept{
				Coding: []fhir.Coding{{Code: deref(code), Display: deref(display)}},
				Text:   deref(display),
			},
		})
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
