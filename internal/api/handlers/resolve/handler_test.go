package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recipe-resolver/internal/api/middleware"
	"recipe-resolver/internal/core/resolver"
	"recipe-resolver/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResolver struct {
	classification string
	bag            resolver.EntityBag
	confidence     float64
	requestID      string
	block          bool
}

func (f *fakeResolver) Resolve(ctx context.Context, classification string, bag resolver.EntityBag, confidence float64) *resolver.Envelope {
	f.classification = classification
	f.bag = bag
	f.confidence = confidence
	f.requestID = common.RequestIDFrom(ctx)

	if f.block {
		<-ctx.Done()
		return resolver.ErrorEnvelope(classification, "request timed out", confidence)
	}
	src := resolver.SourceGenerated
	return &resolver.Envelope{
		Classification: classification,
		Data:           resolver.ContextData{Ingredients: []string{"lemon"}},
		Source:         &src,
		Confidence:     confidence,
	}
}

func newTestRouter(f *fakeResolver, timeout time.Duration) *gin.Engine {
	h := NewHandler(f)
	r := gin.New()
	r.Use(middleware.Timeout(timeout))
	r.POST("/resolve", h.HandleResolve)
	r.POST("/lookup", h.ForIntent(resolver.IntentLookup))
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandleResolve_UsesBodyClassification(t *testing.T) {
	f := &fakeResolver{}
	w := post(newTestRouter(f, time.Second), "/resolve",
		`{"classification":"context","entities":{"taste":"sour","max_results":3},"confidence":0.82}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "context", f.classification)
	assert.Equal(t, 0.82, f.confidence)
	assert.Equal(t, "req-1", f.requestID)
	assert.Equal(t, "sour", f.bag.String("taste"))
	n, ok := f.bag.Int("max_results")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	body := decode(t, w)
	assert.Equal(t, "context", body["classification"])
	assert.Equal(t, "generated", body["source"])
	assert.Nil(t, body["error"])
}

func TestForIntent_PathWins(t *testing.T) {
	f := &fakeResolver{}
	w := post(newTestRouter(f, time.Second), "/lookup",
		`{"classification":"suggest","entities":{"recipe":"pho"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "lookup", f.classification)
	assert.Zero(t, f.confidence)
}

func TestHandle_MalformedJSON(t *testing.T) {
	f := &fakeResolver{}
	w := post(newTestRouter(f, time.Second), "/lookup", `{"entities":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.classification, "engine must not be called")

	body := decode(t, w)
	assert.Equal(t, "lookup", body["classification"])
	assert.Contains(t, body["error"], "malformed request body")
	assert.Nil(t, body["data"])
	assert.Nil(t, body["source"])
}

func TestHandle_Timeout(t *testing.T) {
	f := &fakeResolver{block: true}
	w := post(newTestRouter(f, 20*time.Millisecond), "/resolve",
		`{"classification":"lookup","entities":{"recipe":"pho"},"confidence":0.5}`)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	body := decode(t, w)
	assert.Equal(t, "request timed out", body["error"])
	assert.Equal(t, 0.5, body["confidence"])
}
