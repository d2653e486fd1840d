package graphview

import (
	stdcontext "context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightshade-io/nightshade/pkg/context"
	"github.com/nightshade-io/nightshade/pkg/graph"
)

type stubRepository struct {
	triples []graph.Triple
	err     error
}

func (s *stubRepository) InvestigationTriples(stdcontext.Context, string, int) ([]graph.Triple, error) {
	return s.triples, s.err
}

func (s *stubRepository) EntityTriples(stdcontext.Context, string, int, int) ([]graph.Triple, error) {
	return s.triples, s.err
}

func (s *stubRepository) UpsertEntity(stdcontext.Context, string, *graph.Entity) error {
	return nil
}

func (s *stubRepository) UpsertRelationship(stdcontext.Context, *graph.Relationship) error {
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestAssembler(repo graph.EntityRepository) *graph.Assembler {
	return graph.NewAssembler(repo, graph.AssemblerConfig{}, testLogger())
}

func newEchoContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func sampleTriples() []graph.Triple {
	email := &graph.RawEntity{ID: "email:a@b.com", Labels: []string{"Email"}, Props: map[string]any{"name": "a@b.com"}}
	breach := &graph.RawEntity{ID: "breach:ExampleBreachA", Labels: []string{"Breach"}, Props: map[string]any{"name": "ExampleBreachA"}}
	return []graph.Triple{
		{Source: email, Rel: &graph.RawRelationship{Type: "APPEARED_IN"}, Target: breach},
	}
}

// Resolution order matters here: the container-missing case has to run before
// the default container is registered, since registration is process global.
func TestHandler_AssemblerResolution(t *testing.T) {
	pinned := newTestAssembler(&stubRepository{})

	t.Run("pinned assembler wins", func(t *testing.T) {
		h := NewHandlerWithAssembler(pinned, testLogger())
		c, _ := newEchoContext(http.MethodGet, "/graph")

		asm, err := h.requireAssembler(c)
		require.NoError(t, err)
		assert.Same(t, pinned, asm)
	})

	t.Run("no container means unavailable", func(t *testing.T) {
		h := NewHandler(testLogger())
		c, _ := newEchoContext(http.MethodGet, "/graph")

		_, err := h.requireAssembler(c)
		require.Error(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, httperror.GetStatusCode(err))
	})

	t.Run("resolves from default container", func(t *testing.T) {
		container, err := ectoinject.NewDIDefaultContainer()
		require.NoError(t, err)
		require.NoError(t, ectoinject.RegisterInstance[*graph.Assembler](container, pinned))

		h := NewHandler(testLogger())
		c, _ := newEchoContext(http.MethodGet, "/graph")

		asm, err := h.requireAssembler(c)
		require.NoError(t, err)
		assert.Same(t, pinned, asm)
	})
}

func TestHandler_InvestigationGraph(t *testing.T) {
	h := NewHandlerWithAssembler(newTestAssembler(&stubRepository{triples: sampleTriples()}), testLogger())

	c, rec := newEchoContext(http.MethodGet, "/graph?investigation_id=inv-1&limit=10")
	require.NoError(t, h.InvestigationGraph(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var result graph.Graph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.Nodes, 2)
	assert.Len(t, result.Links, 1)

	assert.Equal(t, "inv-1", context.GetInvestigationID(c.Request().Context()),
		"investigation id is stamped onto the request context")
}

func TestHandler_InvestigationGraphBadLimit(t *testing.T) {
	h := NewHandlerWithAssembler(newTestAssembler(&stubRepository{}), testLogger())

	c, _ := newEchoContext(http.MethodGet, "/graph?limit=lots")
	err := h.InvestigationGraph(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestHandler_EntityGraph(t *testing.T) {
	h := NewHandlerWithAssembler(newTestAssembler(&stubRepository{triples: sampleTriples()}), testLogger())

	c, rec := newEchoContext(http.MethodGet, "/graph/entity/email:a@b.com?depth=2")
	c.SetParamNames("id")
	c.SetParamValues("email:a@b.com")

	require.NoError(t, h.EntityGraph(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var result graph.Graph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.Nodes, 2)
}

func TestHandler_RepositoryDownMapsToBadGateway(t *testing.T) {
	h := NewHandlerWithAssembler(newTestAssembler(&stubRepository{err: graph.ErrRepositoryUnavailable}), testLogger())

	c, _ := newEchoContext(http.MethodGet, "/graph?investigation_id=inv-1")
	err := h.InvestigationGraph(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, httperror.GetStatusCode(err))
}
