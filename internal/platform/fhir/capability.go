package fhir

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// SearchParam describes a search parameter for use with the CapabilityBuilder.
type SearchParam struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Documentation string `json:"documentation,omitempty"`
}

type resourceEntry struct {
	interactions []string
	searchParams []SearchParam
}

// CapabilityBuilder accumulates resource registrations from domain modules
// so /fhir/metadata lists only what is actually served.
type CapabilityBuilder struct {
	mu        sync.RWMutex
	resources map[string]*resourceEntry

	ServerName    string
	ServerVersion string
	BaseURL       string

	now func() time.Time
}

func NewCapabilityBuilder(baseURL, version string) *CapabilityBuilder {
	return &CapabilityBuilder{
		resources:     make(map[string]*resourceEntry),
		ServerName:    "CardiCare",
		ServerVersion: version,
		BaseURL:       baseURL,
		now:           time.Now,
	}
}

// AddResource registers a resource type. Repeated registrations merge,
// deduplicating interactions and search params by code and name.
func (b *CapabilityBuilder) AddResource(resourceType string, interactions []string, searchParams []SearchParam) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.resources[resourceType]
	if !ok {
		entry = &resourceEntry{}
		b.resources[resourceType] = entry
	}

	for _, i := range interactions {
		if !containsString(entry.interactions, i) {
			entry.interactions = append(entry.interactions, i)
		}
	}
	for _, p := range searchParams {
		dup := false
		for _, have := range entry.searchParams {
			if have.Name == p.Name {
				dup = true
				break
			}
		}
		if !dup {
			entry.searchParams = append(entry.searchParams, p)
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ReadOnlyInteractions returns interactions for resources computed on read.
func ReadOnlyInteractions() []string {
	return []string{"read", "search-type"}
}

// ResourceTypes returns the registered types in alphabetical order.
func (b *CapabilityBuilder) ResourceTypes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]string, 0, len(b.resources))
	for rt := range b.resources {
		types = append(types, rt)
	}
	sort.Strings(types)
	return types
}

// Build renders the CapabilityStatement.
func (b *CapabilityBuilder) Build() map[string]interface{} {
	types := b.ResourceTypes()

	b.mu.RLock()
	defer b.mu.RUnlock()

	resources := make([]map[string]interface{}, 0, len(types))
	for _, rt := range types {
		entry := b.resources[rt]
		res := map[string]interface{}{
			"type":       rt,
			"versioning": "no-version",
		}

		interactions := make([]map[string]string, len(entry.interactions))
		for i, code := range entry.interactions {
			interactions[i] = map[string]string{"code": code}
		}
		res["interaction"] = interactions

		if len(entry.searchParams) > 0 {
			params := make([]map[string]string, len(entry.searchParams))
			for i, sp := range entry.searchParams {
				p := map[string]string{"name": sp.Name, "type": sp.Type}
				if sp.Documentation != "" {
					p["documentation"] = sp.Documentation
				}
				params[i] = p
			}
			res["searchParam"] = params
		}
		resources = append(resources, res)
	}

	return map[string]interface{}{
		"resourceType": "CapabilityStatement",
		"status":       "active",
		"date":         b.now().UTC().Format("2006-01-02"),
		"kind":         "instance",
		"fhirVersion":  "4.0.1",
		"format":       []string{"application/fhir+json", "json"},
		"software": map[string]string{
			"name":    b.ServerName,
			"version": b.ServerVersion,
		},
		"implementation": map[string]string{
			"description": b.ServerName + " FHIR R4 facade",
			"url":         b.BaseURL,
		},
		"rest": []map[string]interface{}{{
			"mode":     "server",
			"resource": resources,
		}},
	}
}

// CapabilityHandler serves the metadata endpoints.
type CapabilityHandler struct {
	builder *CapabilityBuilder
}

func NewCapabilityHandler(builder *CapabilityBuilder) *CapabilityHandler {
	return &CapabilityHandler{builder: builder}
}

func (h *CapabilityHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/metadata", h.GetMetadata)
	g.GET("/metadata/resources", h.ListResources)
}

func (h *CapabilityHandler) GetMetadata(c echo.Context) error {
	return c.JSON(http.StatusOK, h.builder.Build())
}

func (h *CapabilityHandler) ListResources(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"resourceTypes": h.builder.ResourceTypes(),
	})
}
