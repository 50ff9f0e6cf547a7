package nodes

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/procflow/internal/engine"
)

// Factory Tests

func TestFactory(t *testing.T) {
	f := NewFactory()
	assert.Empty(t, f.Types())

	f.Register(TypeDelay, NewDelayNode)
	assert.True(t, f.Has(TypeDelay))
	assert.False(t, f.Has("unknown"))

	node, err := f.Create(TypeDelay, "wait", map[string]any{"delaySeconds": 0})
	require.NoError(t, err)
	assert.Equal(t, "wait", node.ID())
	assert.Equal(t, TypeDelay, node.Type())
}

func TestFactory_UnknownType(t *testing.T) {
	f := DefaultFactory()

	_, err := f.Create("unknown_type", "n1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownNodeType)
	assert.Contains(t, err.Error(), "unknown_type")

	var nodeErr *NodeExecutionError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "n1", nodeErr.NodeID)
	assert.Equal(t, "unknown_type", nodeErr.NodeType)
}

func TestDefaultFactory(t *testing.T) {
	f := DefaultFactory()
	assert.Equal(t, []string{TypeConditional, TypeDelay, TypeHTTPRequest}, f.Types())
	assert.False(t, f.Has(TypeTransform))

	f.Register(TypeTransform, NewTransformNode)
	assert.True(t, f.Has(TypeTransform))
}

// Delay Tests

func TestDelayNode_ValidateConfig(t *testing.T) {
	assert.True(t, NewDelayNode("d", map[string]any{"delaySeconds": 1}).ValidateConfig())
	assert.True(t, NewDelayNode("d", map[string]any{"delay_seconds": 1}).ValidateConfig())
	assert.False(t, NewDelayNode("d", map[string]any{}).ValidateConfig())
	assert.False(t, NewDelayNode("d", nil).ValidateConfig())
}

func TestDelayNode_Execute(t *testing.T) {
	ec := engine.NewExecutionContext(map[string]any{"wait": "0.05"})
	node := NewDelayNode("d", map[string]any{"delaySeconds": "{{wait}}"})

	start := time.Now()
	out, err := node.Execute(context.Background(), ec)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, map[string]any{"delayedSeconds": 0.05}, out)
}

func TestDelayNode_Zero(t *testing.T) {
	out, err := NewDelayNode("d", map[string]any{"delaySeconds": 0}).
		Execute(context.Background(), engine.NewExecutionContext(nil))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"delayedSeconds": 0.0}, out)
}

func TestDelayNode_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"negative", -1},
		{"negative string", "-2.5"},
		{"not a number", "soon"},
		{"unresolved template", "{{missing}}"},
		{"null", nil},
		{"nan", "NaN"},
		{"infinity", "Inf"},
		{"infinity float", math.Inf(1)},
		{"beyond duration range", "1e300"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDelayNode("d", map[string]any{"delaySeconds": tt.value}).
				Execute(context.Background(), engine.NewExecutionContext(nil))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)

			var nodeErr *NodeExecutionError
			require.ErrorAs(t, err, &nodeErr)
			assert.Equal(t, "d", nodeErr.NodeID)
		})
	}
}

func TestDelayNode_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := NewDelayNode("d", map[string]any{"delaySeconds": 10}).
		Execute(ctx, engine.NewExecutionContext(nil))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeCancelled)
	assert.Less(t, time.Since(start), time.Second)
}

// Conditional Tests

func TestConditionalNode_Operators(t *testing.T) {
	tests := []struct {
		name     string
		left     any
		operator string
		right    any
		expected bool
	}{
		{"greater numeric", 5, ">", 3, true},
		{"greater numeric strings", "10", ">", "9", true},
		{"greater lexicographic", "b", ">", "a", true},
		{"less", 2.5, "<", 3, true},
		{"equal int and float", 3, "==", 3.0, true},
		{"equal numeric string", "3", "==", 3, true},
		{"equal strings", "ok", "==", "ok", true},
		{"not equal", "ok", "!=", "fail", true},
		{"greater equal", 4, ">=", 4, true},
		{"less equal false", 5, "<=", 4, false},
		{"contains", "hello world", "contains", "world", true},
		{"contains false", "hello", "contains", "xyz", false},
		{"in", "ell", "in", "hello", true},
		{"in numeric coerced", 4, "in", "1234", true},
		{"bool equality", true, "==", "true", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := NewConditionalNode("c", map[string]any{
				"leftValue":  tt.left,
				"rightValue": tt.right,
				"operator":   tt.operator,
			})
			require.True(t, node.ValidateConfig())

			out, err := node.Execute(context.Background(), engine.NewExecutionContext(nil))
			require.NoError(t, err)

			result := out.(map[string]any)
			assert.Equal(t, tt.expected, result["conditionMet"])
			if tt.expected {
				assert.Equal(t, "true", result["branch"])
			} else {
				assert.Equal(t, "false", result["branch"])
			}
			assert.Equal(t, tt.operator, result["operator"])
		})
	}
}

func TestConditionalNode_Templates(t *testing.T) {
	ec := engine.NewExecutionContext(nil)
	ec.SetNodeOutput("fetch", map[string]any{"statusCode": 404})

	node := NewConditionalNode("c", map[string]any{
		"left_value":  "{{fetch.statusCode}}",
		"right_value": 400,
		"operator":    ">=",
	})
	require.True(t, node.ValidateConfig())

	out, err := node.Execute(context.Background(), ec)
	require.NoError(t, err)

	result := out.(map[string]any)
	assert.Equal(t, true, result["conditionMet"])
	assert.Equal(t, "404", result["leftValue"])
	assert.Equal(t, 400, result["rightValue"])
}

func TestConditionalNode_UnknownOperator(t *testing.T) {
	node := NewConditionalNode("c", map[string]any{
		"leftValue": 1, "rightValue": 2, "operator": "~=",
	})

	_, err := node.Execute(context.Background(), engine.NewExecutionContext(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestConditionalNode_ValidateConfig(t *testing.T) {
	assert.False(t, NewConditionalNode("c", map[string]any{"leftValue": 1, "operator": "=="}).ValidateConfig())
	assert.False(t, NewConditionalNode("c", map[string]any{"leftValue": 1, "rightValue": 2}).ValidateConfig())
}

// HTTP Tests

func TestHTTPRequestNode_JSON(t *testing.T) {
	var gotMethod, gotContentType, gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 7, "name": "Ann"}`))
	}))
	defer server.Close()

	ec := engine.NewExecutionContext(map[string]any{"token": "secret", "base": server.URL})
	ec.SetNodeOutput("prev", map[string]any{"name": "Ann"})

	node := NewHTTPRequestNode("call", map[string]any{
		"method":  "post",
		"url":     "{{base}}/users",
		"headers": map[string]any{"Authorization": "Bearer {{token}}"},
		"body":    map[string]any{"name": "{{prev.name}}"},
	})
	require.True(t, node.ValidateConfig())

	out, err := node.Execute(context.Background(), ec)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, map[string]any{"name": "Ann"}, gotBody)

	result := out.(map[string]any)
	assert.Equal(t, http.StatusCreated, result["statusCode"])
	assert.Equal(t, map[string]any{"id": 7.0, "name": "Ann"}, result["body"])

	headers := result["headers"].(map[string]any)
	assert.Equal(t, "application/json", headers["Content-Type"])

	// Output доступен следующим узлам через шаблоны.
	ec.SetNodeOutput("call", out)
	assert.Equal(t, "7", ec.Resolve("{{call.body.id}}"))
}

func TestHTTPRequestNode_TextAndErrorStatus(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	node := NewHTTPRequestNode("call", map[string]any{
		"method": "PUT",
		"url":    server.URL,
		"body":   "raw payload",
	})

	out, err := node.Execute(context.Background(), engine.NewExecutionContext(nil))
	require.NoError(t, err, "non-2xx status is not a node failure")

	result := out.(map[string]any)
	assert.Equal(t, http.StatusInternalServerError, result["statusCode"])
	assert.Equal(t, "boom", result["body"])
	assert.Equal(t, `"raw payload"`, gotBody, "string body is sent as a JSON string")
}

func TestHTTPRequestNode_EmptyBodyNotSent(t *testing.T) {
	for _, body := range []any{"", 0, false, map[string]any{}, []any{}} {
		var (
			gotBody        []byte
			gotContentType string
		)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			gotContentType = r.Header.Get("Content-Type")
		}))

		node := NewHTTPRequestNode("call", map[string]any{"method": "POST", "url": server.URL, "body": body})
		_, err := node.Execute(context.Background(), engine.NewExecutionContext(nil))
		server.Close()

		require.NoError(t, err)
		assert.Empty(t, gotBody, "body %#v", body)
		assert.Empty(t, gotContentType, "body %#v", body)
	}
}

func TestHTTPRequestNode_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	node := NewHTTPRequestNode("slow", map[string]any{
		"method":  "GET",
		"url":     server.URL,
		"timeout": 0.05,
	})

	_, err := node.Execute(context.Background(), engine.NewExecutionContext(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestHTTPRequestNode_BadTimeout(t *testing.T) {
	for _, timeout := range []any{"NaN", "Inf", "1e300", "later"} {
		node := NewHTTPRequestNode("call", map[string]any{
			"method":  "GET",
			"url":     "http://127.0.0.1:1",
			"timeout": timeout,
		})

		_, err := node.Execute(context.Background(), engine.NewExecutionContext(nil))
		assert.ErrorIs(t, err, ErrInvalidConfig, "timeout %v", timeout)
	}
}

func TestHTTPRequestNode_BadURL(t *testing.T) {
	tests := []struct {
		name string
		url  any
	}{
		{"empty after resolution", "{{missing.url}}"},
		{"unresolved null", nil},
		{"no scheme", "example.com/path"},
	}

	ec := engine.NewExecutionContext(nil)
	ec.SetNodeOutput("missing", map[string]any{"url": nil})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := NewHTTPRequestNode("call", map[string]any{"method": "GET", "url": tt.url})
			_, err := node.Execute(context.Background(), ec)
			require.Error(t, err)

			var nodeErr *NodeExecutionError
			assert.ErrorAs(t, err, &nodeErr)
		})
	}
}

func TestHTTPRequestNode_ValidateConfig(t *testing.T) {
	assert.False(t, NewHTTPRequestNode("h", map[string]any{"url": "http://x"}).ValidateConfig())
	assert.False(t, NewHTTPRequestNode("h", map[string]any{"method": "GET"}).ValidateConfig())
}

// Transform Tests

func TestTransformNode(t *testing.T) {
	ec := engine.NewExecutionContext(nil)
	ec.SetNodeOutput("fetch", map[string]any{"body": map[string]any{"name": "Ann"}, "statusCode": 200})

	node := NewTransformNode("t", map[string]any{
		"mappings": map[string]any{
			"user": "{{fetch.body.name}}",
			"code": "{{fetch.statusCode}}",
			"lit":  5,
		},
	})
	require.True(t, node.ValidateConfig())

	out, err := node.Execute(context.Background(), ec)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": "Ann", "code": "200", "lit": 5}, out)

	assert.False(t, NewTransformNode("t", map[string]any{"mappings": "x"}).ValidateConfig())
}
