package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/procflow/internal/engine"
)

const (
	// TypeDelay — тип узла задержки.
	TypeDelay = "delay"

	configDelaySeconds      = "delaySeconds"
	configDelaySecondsAlias = "delay_seconds"
)

// DelayNode — узел задержки.
//
// Приостанавливает только своё execution; отмена контекста
// прерывает ожидание с ErrNodeCancelled.
type DelayNode struct {
	baseNode
}

// NewDelayNode создаёт узел задержки.
func NewDelayNode(id string, config map[string]any) Node {
	return &DelayNode{baseNode: newBaseNode(id, TypeDelay, config)}
}

// ValidateConfig проверяет наличие delaySeconds.
func (n *DelayNode) ValidateConfig() bool {
	return hasKey(n.config, configDelaySeconds, configDelaySecondsAlias)
}

// Execute выполняет задержку.
func (n *DelayNode) Execute(ctx context.Context, ec *engine.ExecutionContext) (any, error) {
	config := ec.ResolveMap(n.config)

	raw, _ := configValue(config, configDelaySeconds, configDelaySecondsAlias)
	seconds, ok := toNumber(raw)
	if !ok {
		return nil, n.failf("delaySeconds must be a number, got %v", raw)
	}
	if seconds < 0 {
		return nil, n.failf("delaySeconds must be >= 0, got %v", engine.Stringify(seconds))
	}

	wait, ok := toDuration(seconds)
	if !ok {
		return nil, n.failf("delaySeconds is too large: %v", engine.Stringify(seconds))
	}

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, n.fail(fmt.Errorf("%w: %v", ErrNodeCancelled, ctx.Err()))
		case <-timer.C:
		}
	}

	return map[string]any{
		"delayedSeconds": seconds,
	}, nil
}
