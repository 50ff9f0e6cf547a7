package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"WARNING": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := WithNodeID(WithExecutionID(NewLogger(&buf, "info", "json"), "exec-1"), "n1")

	logger.Debug("hidden")
	logger.Info("node executed", "type", "delay")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "node executed", entry["msg"])
	assert.Equal(t, "exec-1", entry["execution_id"])
	assert.Equal(t, "n1", entry["node_id"])
	assert.Equal(t, "delay", entry["type"])
}

func TestNewLogger_TextHasNoColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "info", "text").Info("hello", "k", "v")

	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "k=v")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info", "json")

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestObserveNode(t *testing.T) {
	before := testutil.ToFloat64(nodeExecutionsTotal.WithLabelValues("delay", "success"))
	ObserveNode("delay", "success", 10*time.Millisecond)
	after := testutil.ToFloat64(nodeExecutionsTotal.WithLabelValues("delay", "success"))
	assert.Equal(t, before+1, after)
}

func TestObserveExecution(t *testing.T) {
	before := testutil.ToFloat64(executionsTotal.WithLabelValues("failed"))
	ObserveExecution("failed")
	assert.Equal(t, before+1, testutil.ToFloat64(executionsTotal.WithLabelValues("failed")))
}

func TestServeMux_Healthz(t *testing.T) {
	healthy := NewServeMux(func(context.Context) error { return nil })
	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	broken := NewServeMux(func(context.Context) error { return errors.New("db down") })
	rec = httptest.NewRecorder()
	broken.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}

func TestServeMux_Metrics(t *testing.T) {
	ObserveExecution("success")

	rec := httptest.NewRecorder()
	NewServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "procflow_executions_total")
}
