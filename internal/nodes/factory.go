package nodes

import (
	"fmt"
	"sort"
	"sync"
)

// Factory — реестр конструкторов узлов по типу.
//
// Заполняется при старте процесса и дальше только читается.
// Потокобезопасен.
type Factory struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewFactory создаёт пустую фабрику.
func NewFactory() *Factory {
	return &Factory{
		constructors: make(map[string]Constructor),
	}
}

// DefaultFactory создаёт фабрику со встроенными типами узлов.
func DefaultFactory() *Factory {
	f := NewFactory()

	f.Register(TypeHTTPRequest, NewHTTPRequestNode)
	f.Register(TypeDelay, NewDelayNode)
	f.Register(TypeConditional, NewConditionalNode)

	return f
}

// Register регистрирует конструктор для типа.
// Если тип уже зарегистрирован, конструктор будет перезаписан.
func (f *Factory) Register(nodeType string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[nodeType] = ctor
}

// Create создаёт узел по типу.
// Неизвестный тип — NodeExecutionError с ErrUnknownNodeType.
func (f *Factory) Create(nodeType, id string, config map[string]any) (Node, error) {
	f.mu.RLock()
	ctor, exists := f.constructors[nodeType]
	f.mu.RUnlock()

	if !exists {
		return nil, NewNodeExecutionError(id, nodeType,
			fmt.Errorf("%w: %s", ErrUnknownNodeType, nodeType))
	}

	return ctor(id, config), nil
}

// Has проверяет, зарегистрирован ли тип.
func (f *Factory) Has(nodeType string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.constructors[nodeType]
	return exists
}

// Types возвращает отсортированный список зарегистрированных типов.
func (f *Factory) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.constructors))
	for t := range f.constructors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
