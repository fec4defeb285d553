package registry

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/c360/infergate/errors"
)

// Endpoint describes one route: the mux pattern pieces, the handler, and
// the operation metadata rendered into the OpenAPI document.
type Endpoint struct {
	// Method is the HTTP method. GET patterns also match HEAD under the
	// stdlib mux, which covers the HEAD-compatible health probe.
	Method string

	// Path is the route path, starting with "/".
	Path string

	// Handler serves the route.
	Handler http.Handler

	Summary     string
	Description string
	Tags        []string

	// Streaming marks routes whose response can be an SSE stream. It only
	// affects the default response documentation.
	Streaming bool

	// Parameters and Responses feed the OpenAPI operation. A nil Responses
	// gets a default 200 entry.
	Parameters []ParameterSpec
	Responses  map[string]ResponseSpec
}

// Builder accumulates endpoints until Build seals them into a Registry.
type Builder struct {
	info      InfoSpec
	servers   []ServerSpec
	tags      []TagSpec
	endpoints []Endpoint
}

// NewBuilder starts a builder with the document's info block.
func NewBuilder(info InfoSpec) *Builder {
	return &Builder{info: info}
}

// AddServer appends a server entry to the document.
func (b *Builder) AddServer(url, description string) *Builder {
	b.servers = append(b.servers, ServerSpec{URL: url, Description: description})
	return b
}

// AddTag appends a tag definition to the document.
func (b *Builder) AddTag(name, description string) *Builder {
	b.tags = append(b.tags, TagSpec{Name: name, Description: description})
	return b
}

// Add appends an endpoint. Validation happens at Build so registration
// call sites stay unconditional.
func (b *Builder) Add(ep Endpoint) *Builder {
	b.endpoints = append(b.endpoints, ep)
	return b
}

// Build validates every endpoint and seals them into an immutable
// Registry, rendering the OpenAPI document in the same pass.
func (b *Builder) Build() (*Registry, error) {
	seen := make(map[string]struct{}, len(b.endpoints))
	paths := make(map[string]PathSpec)

	for _, ep := range b.endpoints {
		if !strings.HasPrefix(ep.Path, "/") {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Build",
				fmt.Sprintf("route path %q must start with /", ep.Path))
		}
		if ep.Handler == nil {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Build",
				fmt.Sprintf("route %s %s has no handler", ep.Method, ep.Path))
		}

		key := ep.Method + " " + ep.Path
		if _, dup := seen[key]; dup {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Build",
				fmt.Sprintf("duplicate route %s", key))
		}
		seen[key] = struct{}{}

		op := b.operation(ep)
		pathSpec := paths[ep.Path]
		switch ep.Method {
		case http.MethodGet:
			pathSpec.GET = op
		case http.MethodPost:
			pathSpec.POST = op
		case http.MethodPut:
			pathSpec.PUT = op
		case http.MethodDelete:
			pathSpec.DELETE = op
		default:
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Build",
				fmt.Sprintf("unsupported method %q for route %s", ep.Method, ep.Path))
		}
		paths[ep.Path] = pathSpec
	}

	document := &OpenAPIDocument{
		OpenAPI: "3.0.0",
		Info:    b.info,
		Servers: b.servers,
		Paths:   paths,
		Tags:    b.tags,
	}

	endpoints := make([]Endpoint, len(b.endpoints))
	copy(endpoints, b.endpoints)

	return &Registry{endpoints: endpoints, document: document}, nil
}

func (b *Builder) operation(ep Endpoint) *OperationSpec {
	responses := ep.Responses
	if responses == nil {
		contentType := "application/json"
		if ep.Streaming {
			contentType = "text/event-stream"
		}
		responses = map[string]ResponseSpec{
			"200": {Description: "Success", ContentType: contentType},
		}
	}
	return &OperationSpec{
		Summary:     ep.Summary,
		Description: ep.Description,
		Parameters:  ep.Parameters,
		Responses:   responses,
		Tags:        ep.Tags,
	}
}

// Registry is the sealed route table. It is immutable after Build and
// safe for concurrent reads.
type Registry struct {
	endpoints []Endpoint
	document  *OpenAPIDocument
}

// Endpoints returns a copy of the registered endpoints.
func (r *Registry) Endpoints() []Endpoint {
	out := make([]Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// Document returns the rendered OpenAPI document. Callers treat it as
// read-only.
func (r *Registry) Document() *OpenAPIDocument {
	return r.document
}

// Apply mounts every endpoint onto mux using method-qualified patterns.
func (r *Registry) Apply(mux *http.ServeMux) {
	for _, ep := range r.endpoints {
		mux.Handle(ep.Method+" "+ep.Path, ep.Handler)
	}
}
