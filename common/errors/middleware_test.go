package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/peerflow/p2pmatch/internal/matching/model"
)

func middlewareRouter(logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(logger))
	r.GET("/conflict", func(c *gin.Context) {
		c.Error(&model.ConflictError{ID: uuid.New(), Status: model.StatusMatched, Op: "cancel"})
	})
	r.GET("/boom", func(c *gin.Context) {
		c.Error(stderrors.New("pq: connection reset"))
	})
	r.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func TestMiddlewareConvertsContextErrors(t *testing.T) {
	r := middlewareRouter(zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/conflict", nil)
	req.Header.Set("X-Trace-ID", "trace-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var pd ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pd))
	assert.Equal(t, TypeConflict, pd.Type)
	assert.Equal(t, "/conflict", pd.Instance)
	assert.Equal(t, "trace-42", pd.TraceID)
}

func TestMiddlewareLogsServerErrors(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := middlewareRouter(zap.New(core))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var pd ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pd))
	assert.Equal(t, "internal server error", pd.Detail)

	entries := logs.FilterMessage("request failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/boom", entries[0].ContextMap()["path"])
}

func TestMiddlewareLeavesCleanRequestsAlone(t *testing.T) {
	r := middlewareRouter(zap.NewNop())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}
