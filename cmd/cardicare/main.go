package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cardicare/cardicare/internal/config"
	"github.com/cardicare/cardicare/internal/domain/ascvd"
	"github.com/cardicare/cardicare/internal/domain/forecast"
	"github.com/cardicare/cardicare/internal/domain/patient"
	"github.com/cardicare/cardicare/internal/platform/codec"
	"github.com/cardicare/cardicare/internal/platform/db"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cardicare",
		Short:        "Cardiovascular risk and vital-sign trend service",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(riskCmd())
	root.AddCommand(forecastCmd())
	root.AddCommand(patientsCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func riskCmd() *cobra.Command {
	var (
		in        ascvd.Input
		patientID string
	)

	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Compute a 10-year ASCVD risk score",
		Long: "Compute a 10-year ASCVD risk score from flags, or from the latest " +
			"covariates on record when --patient is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if patientID == "" {
				svc := ascvd.NewService(ascvd.NewCalculator(), nil)
				return printAssessment(cmd.OutOrStdout(), svc.Calculate(in))
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			repo, closeRepo, err := openRecordsOnly(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeRepo()

			svc := ascvd.NewService(ascvd.NewCalculator(), patient.NewService(repo))
			a, err := svc.AssessPatient(cmd.Context(), patientID)
			if err != nil {
				return err
			}
			return printAssessment(cmd.OutOrStdout(), a)
		},
	}

	f := cmd.Flags()
	f.StringVar(&patientID, "patient", "", "score a patient on record instead of the flags below")
	f.IntVar(&in.Age, "age", 0, "age in years (40-79)")
	f.StringVar(&in.Sex, "sex", "", "male or female")
	f.Float64Var(&in.TotalCholesterol, "tc", 0, "total cholesterol, mg/dL")
	f.Float64Var(&in.HDLCholesterol, "hdl", 0, "HDL cholesterol, mg/dL")
	f.Float64Var(&in.SystolicBP, "sbp", 0, "systolic blood pressure, mmHg")
	f.BoolVar(&in.BPTreated, "treated", false, "on blood pressure medication")
	f.BoolVar(&in.Smoker, "smoker", false, "current smoker")
	f.BoolVar(&in.Diabetic, "diabetic", false, "has diabetes")
	return cmd
}

func printAssessment(w io.Writer, a *ascvd.Assessment) error {
	if err := printJSON(w, a); err != nil {
		return err
	}
	if a.Status != ascvd.StatusOK {
		return errors.New(a.Message)
	}
	return nil
}

func forecastCmd() *cobra.Command {
	var (
		patientID   string
		feature     string
		days        int
		historyPath string
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Project a vital-sign trend from the history dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			if historyPath == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				historyPath = cfg.HistoryPath
			}
			history, err := forecast.LoadDataset(historyPath)
			if err != nil {
				return err
			}

			svc := forecast.NewService(forecast.DefaultDirectory(), history)
			if feature == "all" {
				results, err := svc.ForecastMany(cmd.Context(), patientID, svc.Features(), days)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), results)
			}

			res := svc.Forecast(cmd.Context(), forecast.Request{PatientID: patientID, Feature: feature, Horizon: days})
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.OK() {
				return errors.New(res.Diagnostic)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&patientID, "patient", "", "patient id")
	f.StringVar(&feature, "feature", "weight", `feature name, or "all"`)
	f.IntVar(&days, "days", 7, "forecast horizon in days (1-30)")
	f.StringVar(&historyPath, "history", "", "CSV or XLSX history (default HISTORY_PATH)")
	_ = cmd.MarkFlagRequired("patient")
	return cmd
}

func patientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patients [query]",
		Short: "List patients on record, optionally filtered by name or id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			repo, closeRepo, err := openRecordsOnly(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeRepo()

			svc := patient.NewService(repo)
			var list []patient.Demographics
			if len(args) == 1 {
				list, err = svc.Search(cmd.Context(), args[0])
			} else {
				list, _, err = svc.List(cmd.Context(), 1000, 0)
			}
			if err != nil {
				return err
			}
			return writePatients(cmd.OutOrStdout(), list)
		},
	}
}

func writePatients(w io.Writer, list []patient.Demographics) error {
	for _, d := range list {
		age := "-"
		if d.Age != nil {
			age = fmt.Sprintf("%d", *d.Age)
		}
		sex := d.Sex
		if sex == "" {
			sex = "-"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.FullName(), sex, age); err != nil {
			return err
		}
	}
	return nil
}

// openRecordsOnly opens the record source without the forecast history or
// the cache.
func openRecordsOnly(ctx context.Context, cfg *config.Config) (patient.Repository, func(), error) {
	a := &app{cfg: cfg, logger: newLogger(cfg).Level(zerolog.WarnLevel), checks: map[string]db.Pinger{}}
	repo, err := a.openRecords(ctx)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return repo, a.Close, nil
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := codec.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, strings.TrimSpace(string(b)))
	return err
}
