package patient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cardicare/cardicare/internal/platform/codec"
	"github.com/cardicare/cardicare/internal/platform/fhir"
)

// FHIRRepository reads records from a FHIR REST server.
type FHIRRepository struct {
	client   *resty.Client
	pageSize int
	maxPages int
}

// clinicalSearches are the per-patient searches that make up a Record.
var clinicalSearches = []string{"Observation", "Condition", "MedicationStatement", "MedicationRequest"}

func NewFHIRRepository(baseURL string, timeout time.Duration) *FHIRRepository {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/fhir+json").
		SetJSONMarshaler(codec.Marshal).
		SetJSONUnmarshaler(codec.Unmarshal)
	return &FHIRRepository{client: client, pageSize: 100, maxPages: 50}
}

func (r *FHIRRepository) ListIDs(ctx context.Context) ([]string, error) {
	entries, err := r.search(ctx, "/Patient", url.Values{"_elements": {"id"}})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		var res fhir.Resource
		if err := codec.Unmarshal(e.Resource, &res); err != nil {
			return nil, fmt.Errorf("decode patient entry: %w", err)
		}
		if res.ResourceType == "Patient" && res.ID != "" {
			ids = append(ids, res.ID)
		}
	}
	return ids, nil
}

func (r *FHIRRepository) Get(ctx context.Context, id string) (*Record, error) {
	resp, err := r.client.R().SetContext(ctx).Get("/Patient/" + url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	if resp.StatusCode() == http.StatusNotFound || resp.StatusCode() == http.StatusGone {
		return nil, ErrNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get patient %s: server returned %d", id, resp.StatusCode())
	}

	entries := []fhir.BundleEntry{{Resource: codec.RawMessage(resp.Body())}}
	for _, resource := range clinicalSearches {
		found, err := r.search(ctx, "/"+resource, url.Values{"patient": {id}})
		if err != nil {
			return nil, err
		}
		entries = append(entries, found...)
	}
	return NewRecord(entries)
}

// Ping reads the server's CapabilityStatement.
func (r *FHIRRepository) Ping(ctx context.Context) error {
	resp, err := r.client.R().SetContext(ctx).Get("/metadata")
	if err != nil {
		return fmt.Errorf("fhir metadata: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("fhir metadata: server returned %d", resp.StatusCode())
	}
	return nil
}

// search runs a FHIR search and follows next links.
func (r *FHIRRepository) search(ctx context.Context, path string, params url.Values) ([]fhir.BundleEntry, error) {
	params.Set("_count", fmt.Sprintf("%d", r.pageSize))
	req := r.client.R().SetContext(ctx).SetQueryParamsFromValues(params)
	target := path

	var out []fhir.BundleEntry
	for page := 0; page < r.maxPages; page++ {
		resp, err := req.Get(target)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", path, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("search %s: server returned %d", path, resp.StatusCode())
		}
		var bundle fhir.Bundle
		if err := codec.Unmarshal(resp.Body(), &bundle); err != nil {
			return nil, fmt.Errorf("decode %s bundle: %w", path, err)
		}
		out = append(out, bundle.Entry...)

		next := bundle.NextLink()
		if next == "" {
			return out, nil
		}
		// The next link already carries the query string.
		target = next
		req = r.client.R().SetContext(ctx)
	}
	return out, nil
}
