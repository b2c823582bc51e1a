// Package hyperschema fetches and dereferences the DatoCMS REST
// hyperschema: a JSON tree, keyed by JSON:API type, describing every
// entity's links (actions) and inline documentation examples.
package hyperschema

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-openapi/jsonpointer"

	"github.com/datocms/mcp-server/internal/memo"
)

// Example is one inline code sample attached to a link.
type Example struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Request     struct {
		Code string `json:"code"`
	} `json:"request"`
	Response struct {
		Code string `json:"code"`
	} `json:"response"`
}

// Link is one action available on an entity (e.g. "instances", "self").
type Link struct {
	Rel           string `json:"rel"`
	Description   string `json:"description"`
	DocURL        string `json:"docUrl"`
	Documentation struct {
		JavaScript struct {
			Examples []Example `json:"examples"`
		} `json:"javascript"`
	} `json:"documentation"`
}

// Entity is one JSON:API type node of the hyperschema tree.
type Entity struct {
	JSONAPIType string `json:"jsonApiType"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Links       []Link `json:"links"`
}

// Document is the fully dereferenced hyperschema: no $ref remains.
type Document struct {
	Entities map[string]Entity
}

// FindEntity returns the entity for jsonAPIType, or false if absent.
func (d *Document) FindEntity(jsonAPIType string) (Entity, bool) {
	e, ok := d.Entities[jsonAPIType]
	return e, ok
}

// FindLink returns the link named rel on jsonAPIType's entity.
func (d *Document) FindLink(jsonAPIType, rel string) (Link, bool) {
	e, ok := d.FindEntity(jsonAPIType)
	if !ok {
		return Link{}, false
	}
	for _, l := range e.Links {
		if l.Rel == rel {
			return l, true
		}
	}
	return Link{}, false
}

// Loader fetches the hyperschema document over HTTP, memoizing the
// result for the process's lifetime (dereferencing is expensive and
// the document never changes within one run).
type Loader struct {
	url        string
	httpClient *http.Client
	once       *memo.Once[*Document]
}

// NewLoader builds a Loader for the given hyperschema URL.
func NewLoader(url string, httpClient *http.Client) *Loader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	l := &Loader{url: url, httpClient: httpClient}
	l.once = memo.New(l.fetch)
	return l
}

// Load returns the dereferenced document, fetching it at most once.
func (l *Loader) Load(ctx context.Context) (*Document, error) {
	return l.once.Get()
}

func (l *Loader) fetch() (*Document, error) {
	operation := func() (*Document, error) {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, l.url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := l.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("hyperschema fetch: server error %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return nil, backoff.Permanent(fmt.Errorf("hyperschema fetch: client error %d", resp.StatusCode))
		}

		var raw map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("hyperschema decode: %w", err))
		}

		resolved, err := dereference(raw, raw)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		doc, err := toDocument(resolved)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return doc, nil
	}

	return backoff.Retry(context.Background(), operation,
		backoff.WithMaxTries(4),
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
	)
}

// dereference walks node recursively, replacing every {"$ref": "#/..."}
// object with the pointer's target resolved against root. Invariant:
// the returned tree contains no $ref keys anywhere.
func dereference(node any, root map[string]any) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok && len(v) == 1 {
			target, err := resolvePointer(root, ref)
			if err != nil {
				return nil, err
			}
			return dereference(target, root)
		}
		out := make(map[string]any, len(v))
		for k, val := range v {
			resolved, err := dereference(val, root)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			resolved, err := dereference(val, root)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolvePointer(root map[string]any, ref string) (any, error) {
	const localPrefix = "#"
	if len(ref) == 0 || ref[0] != '#' {
		return nil, fmt.Errorf("unsupported non-local $ref: %q", ref)
	}
	ptr, err := jsonpointer.New(ref[len(localPrefix):])
	if err != nil {
		return nil, fmt.Errorf("invalid $ref %q: %w", ref, err)
	}
	v, _, err := ptr.Get(root)
	if err != nil {
		return nil, fmt.Errorf("unresolved $ref %q: %w", ref, err)
	}
	return v, nil
}

// toDocument decodes the dereferenced generic tree into typed Entities.
func toDocument(resolved any) (*Document, error) {
	b, err := json.Marshal(resolved)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	// The hyperschema root may present entities directly as top-level
	// keys (one per jsonApiType) rather than nested under "properties";
	// support both shapes defensively.
	var top map[string]json.RawMessage
	if err := json.Unmarshal(b, &top); err != nil {
		return nil, err
	}
	if props, ok := top["properties"]; ok {
		if err := json.Unmarshal(props, &raw.Properties); err == nil {
			top = raw.Properties
		}
	}

	doc := &Document{Entities: make(map[string]Entity, len(top))}
	for key, rawEntity := range top {
		var e Entity
		if err := json.Unmarshal(rawEntity, &e); err != nil {
			continue
		}
		if e.JSONAPIType == "" {
			e.JSONAPIType = key
		}
		doc.Entities[e.JSONAPIType] = e
	}
	return doc, nil
}
