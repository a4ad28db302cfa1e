package fhir

import (
	"time"

	"github.com/cardicare/cardicare/internal/platform/codec"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string           `json:"fullUrl,omitempty"`
	Resource codec.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch    `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// NextLink returns the URL of the next page, or "" on the last page.
func (b *Bundle) NextLink() string {
	for _, l := range b.Link {
		if l.Relation == "next" {
			return l.URL
		}
	}
	return ""
}

// ResourceType peeks at the resourceType of a raw entry.
func (e BundleEntry) ResourceType() (string, error) {
	var r Resource
	if err := codec.Unmarshal(e.Resource, &r); err != nil {
		return "", err
	}
	return r.ResourceType, nil
}

// NewSearchBundle wraps already-rendered resources in a searchset Bundle.
func NewSearchBundle(resources []map[string]interface{}) (*Bundle, error) {
	now := time.Now().UTC()
	entries := make([]BundleEntry, 0, len(resources))
	for _, r := range resources {
		raw, err := codec.Marshal(r)
		if err != nil {
			return nil, err
		}
		entry := BundleEntry{Resource: raw, Search: &BundleSearch{Mode: "match"}}
		if rt, ok := r["resourceType"].(string); ok {
			if id, ok := r["id"].(string); ok {
				entry.FullURL = FormatReference(rt, id)
			}
		}
		entries = append(entries, entry)
	}
	total := len(entries)
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        &total,
		Timestamp:    &now,
		Entry:        entries,
	}, nil
}
