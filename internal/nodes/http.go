package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/procflow/internal/engine"
)

const (
	// TypeHTTPRequest — тип HTTP узла.
	TypeHTTPRequest = "http_request"

	// Значения по умолчанию.
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// Ключи конфигурации HTTP узла.
const (
	configMethod  = "method"
	configURL     = "url"
	configHeaders = "headers"
	configBody    = "body"
	configTimeout = "timeout"
)

// sharedTransport переиспользуется всеми HTTP узлами процесса,
// таймаут задаётся на уровне запроса через context.
var sharedTransport = http.DefaultTransport.(*http.Transport).Clone()

// HTTPRequestNode — узел HTTP запроса.
//
// Выполняет запрос к внешнему API. Тело ответа разбирается как JSON,
// если это возможно, иначе возвращается строкой.
type HTTPRequestNode struct {
	baseNode
	client *http.Client
}

// NewHTTPRequestNode создаёт HTTP узел.
func NewHTTPRequestNode(id string, config map[string]any) Node {
	return &HTTPRequestNode{
		baseNode: newBaseNode(id, TypeHTTPRequest, config),
		client:   &http.Client{Transport: sharedTransport},
	}
}

// ValidateConfig проверяет наличие method и url.
func (n *HTTPRequestNode) ValidateConfig() bool {
	return hasKey(n.config, configMethod) && hasKey(n.config, configURL)
}

// httpConfig — разрезолвленная конфигурация HTTP узла.
type httpConfig struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
	Timeout time.Duration
}

// Execute выполняет HTTP запрос.
func (n *HTTPRequestNode) Execute(ctx context.Context, ec *engine.ExecutionContext) (any, error) {
	cfg, err := n.parseConfig(ec.ResolveMap(n.config))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := n.buildRequest(ctx, cfg)
	if err != nil {
		return nil, n.fail(fmt.Errorf("build request: %w", err))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, n.fail(fmt.Errorf("%w: timeout after %s: %v", ErrRequestFailed, cfg.Timeout, err))
		case ctx.Err() != nil:
			return nil, n.fail(fmt.Errorf("%w: %v", ErrNodeCancelled, ctx.Err()))
		default:
			return nil, n.fail(fmt.Errorf("%w: %v", ErrRequestFailed, err))
		}
	}
	defer resp.Body.Close()

	return n.parseResponse(resp)
}

// parseConfig разбирает разрезолвленный конфиг.
func (n *HTTPRequestNode) parseConfig(config map[string]any) (*httpConfig, error) {
	cfg := &httpConfig{
		Method:  strings.ToUpper(strings.TrimSpace(configString(config, configMethod))),
		URL:     strings.TrimSpace(configString(config, configURL)),
		Headers: configMapString(config, configHeaders),
		Body:    config[configBody],
		Timeout: defaultHTTPTimeout,
	}

	if cfg.Method == "" {
		return nil, n.failf("method is required")
	}

	if cfg.URL == "" {
		return nil, n.failf("url is empty after template resolution")
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, n.failf("invalid url: %q", cfg.URL)
	}

	if raw, ok := config[configTimeout]; ok && raw != nil {
		sec, ok := toNumber(raw)
		if !ok {
			return nil, n.failf("timeout must be a number of seconds, got %v", raw)
		}
		if sec > 0 {
			timeout, ok := toDuration(sec)
			if !ok {
				return nil, n.failf("timeout is too large: %v", engine.Stringify(sec))
			}
			cfg.Timeout = timeout
		}
	}

	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}

	return cfg, nil
}

// buildRequest создаёт HTTP запрос.
func (n *HTTPRequestNode) buildRequest(ctx context.Context, cfg *httpConfig) (*http.Request, error) {
	var bodyReader io.Reader

	if !emptyBody(cfg.Body) {
		bodyBytes, err := json.Marshal(cfg.Body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)

		if !hasHeader(cfg.Headers, "Content-Type") {
			cfg.Headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// emptyBody сообщает, что body не отправляется: nil, "", false, 0,
// пустые map и список. Любое другое значение уходит как JSON, строки тоже.
func emptyBody(body any) bool {
	switch v := body.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	if f, ok := parseNumber(body); ok {
		return f == 0
	}
	return false
}

func hasHeader(headers map[string]string, name string) bool {
	for key := range headers {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

// parseResponse собирает output из ответа.
func (n *HTTPRequestNode) parseResponse(resp *http.Response) (any, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, n.fail(fmt.Errorf("%w: read response body: %v", ErrRequestFailed, err))
	}

	var body any
	if len(bytes.TrimSpace(bodyBytes)) > 0 && json.Valid(bodyBytes) {
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			body = string(bodyBytes)
		}
	} else {
		body = string(bodyBytes)
	}

	headers := make(map[string]any, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	return map[string]any{
		"statusCode": resp.StatusCode,
		"headers":    headers,
		"body":       body,
	}, nil
}
