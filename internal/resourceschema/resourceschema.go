// Package resourceschema loads the CMA client's shipped resource
// manifest (resources.json): an ordered list of entities, each with
// its endpoints, used to answer "what methods exist on resource X".
package resourceschema

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/datocms/mcp-server/internal/memo"
)

//go:embed resources.json
var embedded embed.FS

// Endpoint is one operation on an entity.
type Endpoint struct {
	Rel               string   `json:"rel"`
	Name              string   `json:"name,omitempty"`
	RawName           string   `json:"rawName"`
	Method            string   `json:"method"`
	URLTemplate       string   `json:"urlTemplate"`
	URLPlaceholders   []string `json:"urlPlaceholders"`
	RequestType       string   `json:"requestType,omitempty"`
	QueryType         string   `json:"queryType,omitempty"`
	ResponseType      string   `json:"responseType,omitempty"`
	PaginatedResponse bool     `json:"paginatedResponse"`
	Deprecated        bool     `json:"deprecated"`
	DocURL            string   `json:"docUrl"`

	// Inherited from the parent entity.
	JSONAPIType string `json:"-"`
	Namespace   string `json:"-"`
}

type rawEntity struct {
	JSONAPIType       string     `json:"jsonApiType"`
	Namespace         string     `json:"namespace"`
	ResourceClassName string     `json:"resourceClassName"`
	Endpoints         []Endpoint `json:"endpoints"`
}

// Entity is one resource section of the CMA (e.g. "items").
type Entity struct {
	JSONAPIType       string
	Namespace         string
	ResourceClassName string
	Endpoints         []Endpoint
}

// Manifest is the flattened resource schema: every endpoint carries
// its parent entity's identity per spec's inheritance invariant.
type Manifest struct {
	Entities      []Entity
	byType        map[string]*Entity
	byNamespace   map[string]*Entity
	endpointByRel map[string][]Endpoint
}

// FindByJSONAPIType returns the entity for the given JSON:API type.
func (m *Manifest) FindByJSONAPIType(jsonAPIType string) (Entity, bool) {
	e, ok := m.byType[jsonAPIType]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// FindByNamespace returns the entity whose client-object namespace
// (e.g. "items") matches ns.
func (m *Manifest) FindByNamespace(ns string) (Entity, bool) {
	e, ok := m.byNamespace[ns]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// FindEndpointByRel returns every endpoint named rel across entities.
func (m *Manifest) FindEndpointByRel(rel string) []Endpoint {
	return m.endpointByRel[rel]
}

// Load reads and flattens the embedded resources.json, memoized for
// the process lifetime.
var loadOnce = memo.New(func() (*Manifest, error) {
	b, err := embedded.ReadFile("resources.json")
	if err != nil {
		return nil, fmt.Errorf("read resources.json: %w", err)
	}

	var raw []rawEntity
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse resources.json: %w", err)
	}

	m := &Manifest{
		byType:        make(map[string]*Entity),
		byNamespace:   make(map[string]*Entity),
		endpointByRel: make(map[string][]Endpoint),
	}
	for _, r := range raw {
		entity := Entity{
			JSONAPIType:       r.JSONAPIType,
			Namespace:         r.Namespace,
			ResourceClassName: r.ResourceClassName,
		}
		for _, ep := range r.Endpoints {
			ep.JSONAPIType = r.JSONAPIType
			ep.Namespace = r.Namespace
			entity.Endpoints = append(entity.Endpoints, ep)
			m.endpointByRel[ep.Rel] = append(m.endpointByRel[ep.Rel], ep)
		}
		m.Entities = append(m.Entities, entity)
		stored := &m.Entities[len(m.Entities)-1]
		m.byType[r.JSONAPIType] = stored
		m.byNamespace[r.Namespace] = stored
	}
	return m, nil
})

// Load returns the flattened resource manifest.
func Load() (*Manifest, error) {
	return loadOnce.Get()
}
