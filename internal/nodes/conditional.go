package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/procflow/internal/engine"
)

const (
	// TypeConditional — тип условного узла.
	TypeConditional = "conditional"

	configLeftValue       = "leftValue"
	configLeftValueAlias  = "left_value"
	configRightValue      = "rightValue"
	configRightValueAlias = "right_value"
	configOperator        = "operator"
)

// Поддерживаемые операторы.
const (
	OpEqual        = "=="
	OpNotEqual     = "!="
	OpGreater      = ">"
	OpLess         = "<"
	OpGreaterEqual = ">="
	OpLessEqual    = "<="
	OpContains     = "contains"
	OpIn           = "in"
)

// ConditionalNode — узел сравнения двух значений.
//
// Сам ветвление не выполняет: результат (conditionMet, branch)
// доступен следующим узлам через шаблоны.
type ConditionalNode struct {
	baseNode
}

// NewConditionalNode создаёт условный узел.
func NewConditionalNode(id string, config map[string]any) Node {
	return &ConditionalNode{baseNode: newBaseNode(id, TypeConditional, config)}
}

// ValidateConfig проверяет наличие leftValue, rightValue и operator.
func (n *ConditionalNode) ValidateConfig() bool {
	return hasKey(n.config, configLeftValue, configLeftValueAlias) &&
		hasKey(n.config, configRightValue, configRightValueAlias) &&
		hasKey(n.config, configOperator)
}

// Execute вычисляет условие.
func (n *ConditionalNode) Execute(_ context.Context, ec *engine.ExecutionContext) (any, error) {
	config := ec.ResolveMap(n.config)

	left, _ := configValue(config, configLeftValue, configLeftValueAlias)
	right, _ := configValue(config, configRightValue, configRightValueAlias)
	operator := strings.TrimSpace(configString(config, configOperator))

	met, err := compare(left, right, operator)
	if err != nil {
		return nil, n.fail(err)
	}

	branch := "false"
	if met {
		branch = "true"
	}

	return map[string]any{
		"conditionMet": met,
		"branch":       branch,
		"leftValue":    left,
		"rightValue":   right,
		"operator":     operator,
	}, nil
}

// compare вычисляет left <operator> right.
//
// Если оба операнда приводятся к числу — сравнение числовое,
// иначе сравниваются строковые формы.
func compare(left, right any, operator string) (bool, error) {
	ls, rs := engine.Stringify(left), engine.Stringify(right)

	switch operator {
	case OpContains:
		return strings.Contains(ls, rs), nil
	case OpIn:
		return strings.Contains(rs, ls), nil
	}

	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	numeric := lok && rok

	switch operator {
	case OpEqual:
		if numeric {
			return ln == rn, nil
		}
		return ls == rs, nil
	case OpNotEqual:
		if numeric {
			return ln != rn, nil
		}
		return ls != rs, nil
	case OpGreater:
		if numeric {
			return ln > rn, nil
		}
		return ls > rs, nil
	case OpLess:
		if numeric {
			return ln < rn, nil
		}
		return ls < rs, nil
	case OpGreaterEqual:
		if numeric {
			return ln >= rn, nil
		}
		return ls >= rs, nil
	case OpLessEqual:
		if numeric {
			return ln <= rn, nil
		}
		return ls <= rs, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, operator)
	}
}
