package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cardicare/cardicare/internal/platform/cache"
	"github.com/cardicare/cardicare/internal/platform/codec"
)

// AllowedFeatures are the vitals the dashboard offers for forecasting.
var AllowedFeatures = []string{
	"bmi",
	"weight",
	"height",
	"heart_rate",
	"Systolic blood pressure",
	"Diastolic blood pressure",
}

const maxParallelFits = 4

type Service struct {
	dir      *Directory
	data     Dataset
	cache    cache.Store
	cacheTTL time.Duration
	log      zerolog.Logger
}

type Option func(*Service)

// WithCache memoises successful results in store for ttl.
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = store
		s.cacheTTL = ttl
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(dir *Directory, data Dataset, opts ...Option) *Service {
	s := &Service{dir: dir, data: data, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Features lists the allowed features present in the dataset.
func (s *Service) Features() []string {
	present := make(map[string]bool)
	for _, f := range s.data.Features() {
		present[f] = true
	}
	out := make([]string, 0, len(AllowedFeatures))
	for _, f := range AllowedFeatures {
		if present[f] {
			out = append(out, f)
		}
	}
	return out
}

// Forecast fits a fresh model to the patient's history of req.Feature and
// projects req.Horizon daily values. Failures come back as a Result with a
// diagnostic; Forecast never panics on bad data.
func (s *Service) Forecast(ctx context.Context, req Request) Result {
	if req.Horizon < MinHorizon || req.Horizon > MaxHorizon {
		return req.failed(ErrHorizon)
	}
	name, ok := s.dir.Lookup(req.PatientID)
	if !ok {
		return req.failed(ErrPatientNotFound)
	}

	key := cacheKey(req)
	if res, ok := s.cached(ctx, key); ok {
		return res
	}

	values, unit := s.data.Values(name, req.Feature)
	if len(values) < 2 {
		return req.failed(ErrInsufficientData)
	}

	model, err := fitContext(ctx, values)
	if err != nil {
		return req.failed(err)
	}

	res := Result{
		PatientID: req.PatientID,
		Feature:   req.Feature,
		Horizon:   req.Horizon,
		Values:    model.Forecast(req.Horizon),
		Unit:      unit,
	}
	s.store(ctx, key, res)
	return res
}

// ForecastMany runs one independent fit per feature in parallel. Results are
// returned in the order of features. The error is non-nil only when ctx ends
// before every fit is done.
func (s *Service) ForecastMany(ctx context.Context, patientID string, features []string, horizon int) ([]Result, error) {
	results := make([]Result, len(features))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFits)
	for i, f := range features {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.Forecast(gctx, Request{PatientID: patientID, Feature: f, Horizon: horizon})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// fitContext returns as soon as ctx is done, even if the optimiser is
// still running.
func fitContext(ctx context.Context, values []float64) (*Model, error) {
	type fitted struct {
		model *Model
		err   error
	}
	done := make(chan fitted, 1)
	go func() {
		m, err := Fit(ctx, values)
		done <- fitted{m, err}
	}()
	select {
	case <-ctx.Done():
		return nil, &FitError{Err: ctx.Err()}
	case f := <-done:
		return f.model, f.err
	}
}

func cacheKey(req Request) string {
	return fmt.Sprintf("forecast:%s:%s:%d", req.PatientID, req.Feature, req.Horizon)
}

func (s *Service) cached(ctx context.Context, key string) (Result, bool) {
	if s.cache == nil {
		return Result{}, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn().Err(err).Str("key", key).Msg("forecast cache read failed")
		}
		return Result{}, false
	}
	var res Result
	if err := codec.Unmarshal(raw, &res); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding undecodable cached forecast")
		return Result{}, false
	}
	return res, true
}

func (s *Service) store(ctx context.Context, key string, res Result) {
	if s.cache == nil {
		return
	}
	raw, err := codec.Marshal(res)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("encode forecast for cache")
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("forecast cache write failed")
	}
}
