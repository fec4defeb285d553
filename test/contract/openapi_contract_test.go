// Package contract validates the API surface the gateway publishes:
// the OpenAPI document must stay structurally sound and in lockstep
// with the served routes.
package contract

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/infergate/backend"
	"github.com/c360/infergate/bridge"
	"github.com/c360/infergate/gateway"
	"github.com/c360/infergate/monitor"
	"github.com/c360/infergate/registry"
)

// buildGateway constructs an unstarted gateway purely for its sealed
// route table, the same way the schema exporter does.
func buildGateway(t *testing.T, withMonitor bool) *gateway.Gateway {
	t.Helper()

	engine, err := bridge.New(bridge.DefaultConfig(), backend.NewLoopback())
	require.NoError(t, err)

	var opts []gateway.Option
	if withMonitor {
		mon, err := monitor.New(monitor.DefaultConfig())
		require.NoError(t, err)
		opts = append(opts, gateway.WithMonitor(mon))
	}

	gw, err := gateway.New(gateway.DefaultConfig(), engine, opts...)
	require.NoError(t, err)
	return gw
}

func operations(spec registry.PathSpec) []*registry.OperationSpec {
	var ops []*registry.OperationSpec
	for _, op := range []*registry.OperationSpec{spec.GET, spec.POST, spec.PUT, spec.DELETE} {
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

func TestOpenAPIDocumentValid(t *testing.T) {
	doc := buildGateway(t, false).Registry().Document()

	assert.Equal(t, "3.0.0", doc.OpenAPI)
	assert.NotEmpty(t, doc.Info.Title)
	assert.NotEmpty(t, doc.Info.Version)
	assert.NotEmpty(t, doc.Servers)
	assert.NotEmpty(t, doc.Paths)
}

// Every operation must carry a summary, at least one response and only
// tags the document declares; undocumented routes rot fast.
func TestOpenAPIOperationsComplete(t *testing.T) {
	doc := buildGateway(t, true).Registry().Document()

	declaredTags := make(map[string]bool)
	for _, tag := range doc.Tags {
		declaredTags[tag.Name] = true
	}

	for path, spec := range doc.Paths {
		ops := operations(spec)
		require.NotEmpty(t, ops, "path %s has no operations", path)

		for _, op := range ops {
			assert.NotEmpty(t, op.Summary, "path %s operation missing summary", path)
			assert.NotEmpty(t, op.Responses, "path %s operation missing responses", path)
			for _, tag := range op.Tags {
				assert.True(t, declaredTags[tag],
					"path %s references undeclared tag %q", path, tag)
			}
		}
	}
}

func TestOpenAPIRequiredPaths(t *testing.T) {
	doc := buildGateway(t, false).Registry().Document()

	requiredPaths := []string{
		"/api/v1/chat/completions",
		"/api/v1/audio/transcriptions",
		"/api/v1/models",
		"/health",
		"/healthz",
		"/readyz",
		"/openapi.json",
		"/docs",
	}

	for _, path := range requiredPaths {
		_, exists := doc.Paths[path]
		assert.True(t, exists, "document missing required path: %s", path)
	}

	// Monitor routes only join the table when a monitor is attached.
	_, exists := doc.Paths["/state"]
	assert.False(t, exists, "monitor route present without an attached monitor")

	withMonitor := buildGateway(t, true).Registry().Document()
	_, exists = withMonitor.Paths["/state"]
	assert.True(t, exists, "monitor route missing with an attached monitor")
	_, exists = withMonitor.Paths["/state/ws"]
	assert.True(t, exists, "monitor websocket route missing with an attached monitor")
}

// The served /openapi.json must be exactly the document the registry
// holds, which is also what the schema exporter writes. Any drift means
// published contracts no longer describe the running server.
func TestServedDocumentMatchesRegistry(t *testing.T) {
	gw := buildGateway(t, true)

	want, err := json.Marshal(gw.Registry().Document())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(want), rec.Body.String())
}

func TestInferencePathsAcceptOnlyPost(t *testing.T) {
	doc := buildGateway(t, false).Registry().Document()

	for _, path := range []string{"/api/v1/chat/completions", "/api/v1/audio/transcriptions"} {
		spec, exists := doc.Paths[path]
		require.True(t, exists, "document missing path %s", path)
		assert.NotNil(t, spec.POST, "path %s must document POST", path)
		assert.Nil(t, spec.GET, "path %s must not document GET", path)
	}
}
