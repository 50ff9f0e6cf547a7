// Package nodes содержит типы узлов workflow и фабрику для их создания.
//
// # Обзор
//
// Узел — типизированная единица работы. Каждый узел:
//   - Получает свой id и сырой config при создании (config может содержать шаблоны)
//   - Проверяет структуру config через ValidateConfig (без резолва шаблонов)
//   - При выполнении резолвит config через ExecutionContext.ResolveMap
//   - Возвращает output, доступный следующим узлам как {{node_id.field}}
//
// # Интерфейс Node
//
//	type Node interface {
//	    ID() string
//	    Type() string
//	    ValidateConfig() bool
//	    Execute(ctx context.Context, ec *engine.ExecutionContext) (any, error)
//	}
//
// Любая ошибка Execute — *NodeExecutionError.
//
// # Factory
//
// Factory сопоставляет тип узла с конструктором:
//
//	factory := nodes.DefaultFactory()             // http_request, delay, conditional
//	factory.Register("transform", nodes.NewTransformNode)
//	node, err := factory.Create("delay", "wait", map[string]any{"delaySeconds": 5})
//
// Регистрация выполняется при старте процесса; во время выполнения
// workflows фабрика только читается.
//
// # Типы узлов
//
// ## http_request (http.go)
//
//	{
//	    "method": "POST",
//	    "url": "https://api.example.com/users/{{fetch.body.id}}",
//	    "headers": {"Authorization": "Bearer {{token}}"},
//	    "body": {"name": "{{fetch.body.name}}"},
//	    "timeout": 30
//	}
//
// Output: {"statusCode": 200, "headers": {...}, "body": {...} или строка}.
// Статусы 4xx/5xx ошибкой не считаются.
//
// ## delay (delay.go)
//
//	{"delaySeconds": 5}
//
// Output: {"delayedSeconds": 5}
//
// ## conditional (conditional.go)
//
//	{"leftValue": "{{fetch.statusCode}}", "operator": ">=", "rightValue": 400}
//
// Output: {"conditionMet": true, "branch": "true", "leftValue": ..., "rightValue": ..., "operator": ">="}
//
// ## transform (transform.go)
//
// Не входит в DefaultFactory — регистрируется бинарниками при старте.
//
//	{"mappings": {"user": "{{fetch.body.name}}", "code": "{{fetch.statusCode}}"}}
//
// Output — разрезолвленные mappings.
package nodes
