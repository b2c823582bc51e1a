package cma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultBaseURL is the production DatoCMS Content Management API host.
const DefaultBaseURL = "https://site-api.datocms.com"

// HTTPClient is the concrete, network-backed cma.Client: it drives the
// real CMA REST API directly rather than through the installed Node
// client, since this process has no JS runtime of its own outside the
// sandboxed workspace. Each (resource, method) call is resolved to one
// REST endpoint by endpointFor, so this client only needs a generic
// "do one HTTP request" primitive plus the two whole-project reads
// (Site, ItemTypes) the schema tools need.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewHTTPClient builds an HTTPClient. cfg.BaseURL defaults to
// DefaultBaseURL when empty.
func NewHTTPClient(cfg Config, httpClient *http.Client) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{cfg: cfg, httpClient: httpClient}
}

func (c *HTTPClient) Config() Config { return c.cfg }

// jsonAPIEnvelope is the JSON:API response shape every CMA endpoint
// returns, whether it carries a resource payload or an error list.
type jsonAPIEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []ErrorDetail   `json:"errors"`
}

// Call issues one REST request for (resource, method). args[0], when
// present, is the request body; a "/:id"-style path segment is taken
// from args[1] if the method's endpoint requires one. The HTTP verb
// and URL path come from endpointFor, which derives them from the
// method name.
func (c *HTTPClient) Call(ctx context.Context, resource, method string, args []any) (any, error) {
	reqURL, err := c.resolveURL(resource, method, args)
	if err != nil {
		return nil, err
	}

	operation := func() (any, error) {
		req, err := c.buildRequest(ctx, resource, method, args)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("datocms: server error %d calling %s.%s", resp.StatusCode, resource, method)
		}

		var envelope jsonAPIEnvelope
		if resp.StatusCode != http.StatusNoContent {
			if decErr := json.NewDecoder(resp.Body).Decode(&envelope); decErr != nil {
				return nil, backoff.Permanent(fmt.Errorf("datocms: decoding response from %s.%s: %w", resource, method, decErr))
			}
		}

		if resp.StatusCode >= 400 || len(envelope.Errors) > 0 {
			apiErr := &ApiError{Request: reqURL, Errors: envelope.Errors}
			if len(apiErr.Errors) == 0 {
				apiErr.Errors = []ErrorDetail{{Detail: fmt.Sprintf("unexpected status %d", resp.StatusCode)}}
			}
			return nil, backoff.Permanent(apiErr)
		}

		if len(envelope.Data) == 0 {
			return nil, nil
		}
		var decoded any
		if err := json.Unmarshal(envelope.Data, &decoded); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("datocms: unmarshaling data from %s.%s: %w", resource, method, err))
		}
		return decoded, nil
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithMaxTries(3),
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
	)
	if err != nil {
		var apiErr *ApiError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		if ctx.Err() != nil {
			return nil, &TimeoutError{Message: fmt.Sprintf("request to %s timed out: %v", reqURL, ctx.Err())}
		}
		return nil, fmt.Errorf("datocms: calling %s.%s: %w", resource, method, err)
	}
	return result, nil
}

func (c *HTTPClient) resolveURL(resource, method string, args []any) (string, error) {
	_, path := endpointFor(resource, method, args)
	return c.cfg.BaseURL + path, nil
}

func (c *HTTPClient) buildRequest(ctx context.Context, resource, method string, args []any) (*http.Request, error) {
	verb, path := endpointFor(resource, method, args)

	var body []byte
	if len(args) > 0 {
		if payload := args[0]; payload != nil {
			encoded, err := json.Marshal(map[string]any{"data": payload})
			if err != nil {
				return nil, fmt.Errorf("datocms: encoding request body for %s.%s: %w", resource, method, err)
			}
			body = encoded
		}
	}

	req, err := http.NewRequestWithContext(ctx, verb, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("datocms: building request for %s.%s: %w", resource, method, err)
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Version", "3")
	if c.cfg.Environment != "" {
		req.Header.Set("X-Environment", c.cfg.Environment)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/vnd.api+json")
	}
	return req, nil
}

// endpointFor derives an HTTP verb and URL path from a (resource,
// method) pair using DatoCMS's own REST naming convention. It covers
// the common "instances/self/create/update/destroy" shapes every
// JSON:API-flavored CMA resource follows; any other method falls back
// to POST /<resource>/<id>. The resource name is used as given, with
// underscores turned into hyphens; it is not pluralized.
func endpointFor(resource, method string, args []any) (verb, path string) {
	id := ""
	if len(args) > 1 {
		if s, ok := args[1].(string); ok {
			id = s
		}
	}

	if resource == "fields" && strings.EqualFold(method, "list") {
		return http.MethodGet, "/item-types/" + id + "/fields"
	}
	if resource == "fieldsets" && strings.EqualFold(method, "list") {
		return http.MethodGet, "/item-types/" + id + "/fieldsets"
	}

	base := "/" + strings.ReplaceAll(resource, "_", "-")

	switch strings.ToLower(method) {
	case "list", "rawlist":
		return http.MethodGet, base
	case "find", "rawfind":
		if id == "" {
			return http.MethodGet, base
		}
		return http.MethodGet, base + "/" + id
	case "create":
		return http.MethodPost, base
	case "update":
		return http.MethodPut, base + "/" + id
	case "destroy":
		return http.MethodDelete, base + "/" + id
	default:
		return http.MethodPost, base + "/" + id
	}
}

// Site fetches /site and decodes its locales.
func (c *HTTPClient) Site(ctx context.Context) (Site, error) {
	raw, err := c.Call(ctx, "site", "find", nil)
	if err != nil {
		return Site{}, err
	}
	m, _ := raw.(map[string]any)
	attrs, _ := m["attributes"].(map[string]any)
	site := Site{}
	if locales, ok := attrs["locales"].([]any); ok {
		for _, l := range locales {
			if s, ok := l.(string); ok {
				site.Locales = append(site.Locales, s)
			}
		}
	}
	return site, nil
}

// ItemTypes fetches every model in the project via /item-types,
// populating fields and fieldsets with a second request per model
// (matching the CMA's own nested-resource shape: fields are not
// embedded in the item-types list response).
func (c *HTTPClient) ItemTypes(ctx context.Context) ([]ItemType, error) {
	raw, err := c.Call(ctx, "item_types", "list", nil)
	if err != nil {
		return nil, err
	}
	entries, _ := raw.([]any)

	itemTypes := make([]ItemType, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		it := decodeItemType(m)

		fieldsRaw, ferr := c.Call(ctx, "fields", "list", []any{nil, it.ID})
		if ferr != nil {
			return nil, ferr
		}
		it.Fields = decodeFields(fieldsRaw)

		fieldsetsRaw, fserr := c.Call(ctx, "fieldsets", "list", []any{nil, it.ID})
		if fserr != nil {
			return nil, fserr
		}
		it.Fieldsets = decodeFieldsets(fieldsetsRaw)

		itemTypes = append(itemTypes, it)
	}
	return itemTypes, nil
}

func decodeItemType(m map[string]any) ItemType {
	it := ItemType{}
	if id, ok := m["id"].(string); ok {
		it.ID = id
	}
	attrs, _ := m["attributes"].(map[string]any)
	it.APIKey, _ = attrs["api_key"].(string)
	it.Name, _ = attrs["name"].(string)
	it.Singleton, _ = attrs["singleton"].(bool)
	it.SortOrder, _ = attrs["sortable"].(bool)
	it.Tree, _ = attrs["tree"].(bool)
	it.Modular, _ = attrs["modular_block"].(bool)
	it.OrderingField, _ = attrs["ordering_field"].(string)
	return it
}

func decodeFields(raw any) []Field {
	entries, _ := raw.([]any)
	fields := make([]Field, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		f := Field{}
		f.ID, _ = m["id"].(string)
		attrs, _ := m["attributes"].(map[string]any)
		f.APIKey, _ = attrs["api_key"].(string)
		f.FieldType, _ = attrs["field_type"].(string)
		f.Localized, _ = attrs["localized"].(bool)
		if v, ok := attrs["validators"].(map[string]any); ok {
			f.Validators = v
		}
		fields = append(fields, f)
	}
	return fields
}

func decodeFieldsets(raw any) []Fieldset {
	entries, _ := raw.([]any)
	fieldsets := make([]Fieldset, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		fs := Fieldset{}
		fs.ID, _ = m["id"].(string)
		attrs, _ := m["attributes"].(map[string]any)
		fs.Title, _ = attrs["title"].(string)
		fieldsets = append(fieldsets, fs)
	}
	return fieldsets
}
