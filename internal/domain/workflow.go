package domain

import (
	"time"

	"github.com/google/uuid"
)

// Workflow — сохранённое определение бизнес-процесса.
//
// Один workflow может запускаться многократно; каждый запуск — отдельный Execution.
type Workflow struct {
	// ID — уникальный идентификатор workflow.
	ID uuid.UUID `json:"id"`

	// Name — человекочитаемое имя.
	Name string `json:"name"`

	// Description — описание назначения workflow.
	Description string `json:"description,omitempty"`

	// Definition — граф узлов и рёбер.
	Definition WorkflowDefinition `json:"definition"`

	// IsActive — неактивные workflows не запускаются по расписанию.
	IsActive bool `json:"is_active"`

	// Schedule — cron-выражение (5 полей). Пусто — запуск только вручную.
	Schedule string `json:"schedule,omitempty"`

	// NextRunAt — следующее время запуска по расписанию.
	NextRunAt *time.Time `json:"next_run_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsScheduled возвращает true, если у workflow задано расписание.
func (w *Workflow) IsScheduled() bool {
	return w.Schedule != ""
}

// WorkflowDefinition — граф workflow: узлы и рёбра.
//
// Рёбра задают только порядок (precedence). Данные между узлами
// передаются явно через шаблоны {{node_id.field}} в config.
type WorkflowDefinition struct {
	Nodes []NodeDef `json:"nodes" yaml:"nodes"`
	Edges []EdgeDef `json:"edges" yaml:"edges"`
}

// NodeDef — объявление узла в графе.
type NodeDef struct {
	// ID — уникальный идентификатор узла в рамках workflow.
	ID string `json:"id" yaml:"id"`

	// Type — тип узла: "http_request", "delay", "conditional", ...
	Type string `json:"type" yaml:"type"`

	// Config — сырая конфигурация узла; может содержать шаблоны.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`

	// OnError — политика при ошибке узла (abort по умолчанию).
	OnError ErrorPolicy `json:"on_error,omitempty" yaml:"on_error,omitempty"`
}

// EdgeDef — ребро графа: From выполняется раньше To.
type EdgeDef struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Node возвращает объявление узла по ID.
func (d *WorkflowDefinition) Node(id string) (*NodeDef, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// NodeIDs возвращает ID узлов в порядке объявления.
func (d *WorkflowDefinition) NodeIDs() []string {
	ids := make([]string, len(d.Nodes))
	for i := range d.Nodes {
		ids[i] = d.Nodes[i].ID
	}
	return ids
}
