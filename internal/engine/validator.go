package engine

import (
	"fmt"

	"github.com/shaiso/procflow/internal/domain"
)

// ValidateDefinition выполняет полную валидацию WorkflowDefinition.
//
// Проверяет по порядку:
// - Наличие узлов
// - Непустые id и type у каждого узла, уникальность id
// - Допустимость on_error
// - Что оба конца каждого ребра ссылаются на объявленный узел
// - Отсутствие циклов (DFS по всем узлам, включая несвязные компоненты)
//
// Первая найденная ошибка возвращается как *ValidationError.
func ValidateDefinition(def *domain.WorkflowDefinition) error {
	if def == nil {
		return NewValidationError(-1, "", "", "workflow definition is required", ErrNilDefinition)
	}

	if len(def.Nodes) == 0 {
		return NewValidationError(-1, "nodes", "", "workflow must have at least one node", ErrEmptyNodes)
	}

	nodeIDs := make(map[string]bool, len(def.Nodes))

	for i := range def.Nodes {
		node := &def.Nodes[i]

		if node.ID == "" {
			return NewValidationError(i, nodeField(i, "id"), "",
				fmt.Sprintf("node at index %d is missing id", i), ErrEmptyNodeID)
		}
		if node.Type == "" {
			return NewValidationError(i, nodeField(i, "type"), node.ID,
				fmt.Sprintf("node at index %d is missing type", i), ErrEmptyNodeType)
		}
		if nodeIDs[node.ID] {
			return NewValidationError(i, nodeField(i, "id"), node.ID,
				fmt.Sprintf("duplicate node id: %s", node.ID), ErrDuplicateNodeID)
		}
		if !node.OnError.IsValid() {
			return NewValidationError(i, nodeField(i, "on_error"), node.ID,
				fmt.Sprintf("invalid on_error value: %q", node.OnError), ErrInvalidErrorPolicy)
		}

		nodeIDs[node.ID] = true
	}

	for i, edge := range def.Edges {
		if edge.From == "" || !nodeIDs[edge.From] {
			return NewValidationError(i, edgeField(i, "from"), edge.From,
				fmt.Sprintf("edge at index %d references unknown source node: %q", i, edge.From), ErrUnknownEdgeNode)
		}
		if edge.To == "" || !nodeIDs[edge.To] {
			return NewValidationError(i, edgeField(i, "to"), edge.To,
				fmt.Sprintf("edge at index %d references unknown target node: %q", i, edge.To), ErrUnknownEdgeNode)
		}
	}

	if nodeID, ok := findCycle(def.Nodes, def.Edges); ok {
		return NewValidationError(-1, "edges", nodeID,
			fmt.Sprintf("workflow contains a cycle at node %s", nodeID), ErrCyclicDependency)
	}

	return nil
}

// Состояния узла при обходе в глубину.
const (
	unvisited = iota
	onStack
	done
)

// findCycle ищет цикл обходом в глубину с отслеживанием стека рекурсии.
//
// Обход запускается от каждого непосещённого узла в порядке объявления,
// поэтому циклы в компонентах, недостижимых от корней, тоже находятся.
// Возвращает ID узла, в который ведёт обратное ребро.
func findCycle(nodes []domain.NodeDef, edges []domain.EdgeDef) (string, bool) {
	adj := adjacency(nodes, edges)
	state := make(map[string]int, len(nodes))

	var visit func(id string) (string, bool)
	visit = func(id string) (string, bool) {
		state[id] = onStack
		for _, next := range adj[id] {
			switch state[next] {
			case onStack:
				return next, true
			case unvisited:
				if cycleAt, found := visit(next); found {
					return cycleAt, true
				}
			}
		}
		state[id] = done
		return "", false
	}

	for i := range nodes {
		if state[nodes[i].ID] != unvisited {
			continue
		}
		if cycleAt, found := visit(nodes[i].ID); found {
			return cycleAt, true
		}
	}

	return "", false
}

// ExecutionOrder выполняет топологическую сортировку (алгоритм Кана).
//
// Очередь готовых узлов заполняется в порядке объявления узлов,
// последователи добавляются в порядке рёбер (FIFO), поэтому при
// фиксированном определении порядок детерминирован.
// Если порядок короче списка узлов — в графе есть цикл.
func ExecutionOrder(nodes []domain.NodeDef, edges []domain.EdgeDef) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	for i := range nodes {
		inDegree[nodes[i].ID] = 0
	}
	for _, edge := range edges {
		inDegree[edge.To]++
	}

	adj := adjacency(nodes, edges)

	queue := make([]string, 0, len(nodes))
	for i := range nodes {
		if inDegree[nodes[i].ID] == 0 {
			queue = append(queue, nodes[i].ID)
		}
	}

	order := make([]string, 0, len(nodes))

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, next := range adj[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, NewValidationError(-1, "edges", "",
			"workflow contains a cycle: execution order is incomplete", ErrCyclicDependency)
	}

	return order, nil
}

// Plan валидирует определение и возвращает порядок выполнения.
func Plan(def *domain.WorkflowDefinition) ([]string, error) {
	if err := ValidateDefinition(def); err != nil {
		return nil, err
	}
	return ExecutionOrder(def.Nodes, def.Edges)
}

// adjacency строит списки последователей в порядке рёбер.
func adjacency(nodes []domain.NodeDef, edges []domain.EdgeDef) map[string][]string {
	adj := make(map[string][]string, len(nodes))
	for _, edge := range edges {
		adj[edge.From] = append(adj[edge.From], edge.To)
	}
	return adj
}
