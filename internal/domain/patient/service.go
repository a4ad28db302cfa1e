package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cardicare/cardicare/pkg/pagination"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock overrides the clock used for age calculation.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time { return s.now() }

func (s *Service) Record(ctx context.Context, id string) (*Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("patient id is required")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*Demographics, error) {
	rec, err := s.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	d := rec.Demographics(s.now())
	return &d, nil
}

// List returns one page of patient banners and the total patient count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Demographics, int, error) {
	ids, err := s.repo.ListIDs(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list patient ids: %w", err)
	}
	total := len(ids)
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(total)
	out := make([]Demographics, 0, end-start)
	for _, id := range ids[start:end] {
		d, err := s.Get(ctx, id)
		if err != nil {
			return nil, 0, fmt.Errorf("load patient %s: %w", id, err)
		}
		out = append(out, *d)
	}
	return out, total, nil
}

// Search matches the query, case-insensitively, against patient ids and
// full names. An empty query matches nothing.
func (s *Service) Search(ctx context.Context, query string) ([]Demographics, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	ids, err := s.repo.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patient ids: %w", err)
	}
	var out []Demographics
	for _, id := range ids {
		d, err := s.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load patient %s: %w", id, err)
		}
		if strings.Contains(strings.ToLower(d.FullName()), q) || strings.Contains(strings.ToLower(id), q) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *Service) SeriesFor(ctx context.Context, id string, f Feature) (Series, error) {
	rec, err := s.Record(ctx, id)
	if err != nil {
		return Series{}, err
	}
	return rec.Series(f), nil
}

func (s *Service) RiskCovariates(ctx context.Context, id string) (*RiskCovariates, error) {
	rec, err := s.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	rc := rec.RiskCovariates(s.now())
	return &rc, nil
}

// Dashboard is everything the patient view renders.
type Dashboard struct {
	Demographics Demographics      `json:"demographics"`
	Latest       map[Feature]Point `json:"latest"`
	Series       []Series          `json:"series"`
	Covariates   RiskCovariates    `json:"risk_covariates"`
}

func (s *Service) Dashboard(ctx context.Context, id string) (*Dashboard, error) {
	rec, err := s.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	d := &Dashboard{
		Demographics: rec.Demographics(now),
		Latest:       make(map[Feature]Point),
		Covariates:   rec.RiskCovariates(now),
	}
	for _, f := range Features {
		series := rec.Series(f)
		d.Series = append(d.Series, series)
		if p, ok := series.Latest(); ok {
			d.Latest[f] = p
		}
	}
	return d, nil
}
