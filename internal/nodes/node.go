package nodes

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/procflow/internal/engine"
)

// Node — интерфейс для типов узлов.
//
// Каждый тип (http_request, delay, conditional, ...) реализует этот интерфейс.
type Node interface {
	// ID возвращает идентификатор узла в workflow.
	ID() string

	// Type возвращает тип узла.
	Type() string

	// ValidateConfig — быстрая проверка наличия обязательных ключей.
	// Шаблоны не резолвятся, побочных эффектов нет.
	ValidateConfig() bool

	// Execute резолвит config через ec и выполняет узел.
	// Узел должен проверять ctx.Done() для graceful shutdown.
	Execute(ctx context.Context, ec *engine.ExecutionContext) (any, error)
}

// Constructor создаёт узел из id и сырого config.
type Constructor func(id string, config map[string]any) Node

// baseNode — общие поля всех узлов.
type baseNode struct {
	id       string
	nodeType string
	config   map[string]any
}

func newBaseNode(id, nodeType string, config map[string]any) baseNode {
	if config == nil {
		config = make(map[string]any)
	}
	return baseNode{id: id, nodeType: nodeType, config: config}
}

// ID возвращает идентификатор узла.
func (n *baseNode) ID() string { return n.id }

// Type возвращает тип узла.
func (n *baseNode) Type() string { return n.nodeType }

// fail оборачивает причину в NodeExecutionError этого узла.
func (n *baseNode) fail(err error) error {
	return NewNodeExecutionError(n.id, n.nodeType, err)
}

// failf — fail с ErrInvalidConfig и форматированным сообщением.
func (n *baseNode) failf(format string, args ...any) error {
	return n.fail(fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
}

// hasKey проверяет наличие одного из ключей (учитывая алиасы).
func hasKey(config map[string]any, keys ...string) bool {
	for _, key := range keys {
		if _, ok := config[key]; ok {
			return true
		}
	}
	return false
}

// configValue возвращает значение первого найденного ключа.
// Первым передаётся основной ключ, затем алиасы.
func configValue(config map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := config[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// configString извлекает строковое значение из конфига.
func configString(config map[string]any, key string) string {
	if v, ok := config[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return engine.Stringify(v)
	}
	return ""
}

// configMapString извлекает map[string]string из конфига.
func configMapString(config map[string]any, key string) map[string]string {
	v, ok := config[key]
	if !ok {
		return nil
	}

	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]any:
		result := make(map[string]string, len(m))
		for k, val := range m {
			result[k] = engine.Stringify(val)
		}
		return result
	}
	return nil
}

// maxSeconds — наибольшее число секунд, представимое в time.Duration.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// toNumber приводит значение к конечному float64.
// Числовые строки (после резолва шаблонов) тоже принимаются.
// NaN и бесконечности числом не считаются.
func toNumber(v any) (float64, bool) {
	f, ok := parseNumber(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toDuration переводит секунды в time.Duration.
// false, если значение вне диапазона time.Duration.
func toDuration(seconds float64) (time.Duration, bool) {
	if seconds < 0 || seconds > maxSeconds {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func parseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
