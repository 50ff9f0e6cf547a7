package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/procflow/internal/domain"
	"github.com/shaiso/procflow/internal/engine"
	"github.com/shaiso/procflow/internal/nodes"
	"github.com/shaiso/procflow/internal/repo"
)

// testNode — узел с подставляемым поведением.
type testNode struct {
	id  string
	run func() (any, error)
}

func (n *testNode) ID() string           { return n.id }
func (n *testNode) Type() string         { return "test" }
func (n *testNode) ValidateConfig() bool { return true }
func (n *testNode) Execute(context.Context, *engine.ExecutionContext) (any, error) {
	return n.run()
}

func newTestFactory(run func() (any, error)) *nodes.Factory {
	f := nodes.DefaultFactory()
	f.Register(nodes.TypeTransform, nodes.NewTransformNode)
	f.Register("test", func(id string, _ map[string]any) nodes.Node {
		return &testNode{id: id, run: run}
	})
	return f
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store  *repo.MemoryStore
	engine *WorkflowEngine
	exec   *domain.Execution
}

func newFixture(t *testing.T, factory *nodes.Factory, recorder Recorder, plans PlanCache) *fixture {
	t.Helper()

	store := repo.NewMemoryStore()
	exec := domain.NewExecution(uuid.New(), domain.TriggerManual)
	require.NoError(t, store.Executions().Create(context.Background(), exec))

	if recorder == nil {
		recorder = store
	}

	eng, err := New(Config{Factory: factory, Recorder: recorder, Plans: plans, Logger: quietLogger()})
	require.NoError(t, err)

	return &fixture{store: store, engine: eng, exec: exec}
}

func (f *fixture) execution(t *testing.T) *domain.Execution {
	t.Helper()
	got, err := f.store.Executions().GetByID(context.Background(), f.exec.ID)
	require.NoError(t, err)
	return got
}

func (f *fixture) logs(t *testing.T) []domain.ExecutionLog {
	t.Helper()
	logs, err := f.store.Logs().ListByExecution(context.Background(), f.exec.ID)
	require.NoError(t, err)
	return logs
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{Recorder: repo.NewMemoryStore()})
	assert.ErrorIs(t, err, ErrNoFactory)

	_, err = New(Config{Factory: nodes.DefaultFactory()})
	assert.ErrorIs(t, err, ErrNoRecorder)
}

func TestExecute_SingleDelay(t *testing.T) {
	f := newFixture(t, nodes.DefaultFactory(), nil, nil)

	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{{ID: "n1", Type: nodes.TypeDelay, Config: map[string]any{"delaySeconds": 0}}},
		Edges: []domain.EdgeDef{},
	}

	result, err := f.engine.Execute(context.Background(), def, f.exec.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n1": map[string]any{"delayedSeconds": 0.0}}, result)

	got := f.execution(t)
	assert.Equal(t, domain.ExecutionStatusSuccess, got.Status)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, result, got.ResultData)

	logs := f.logs(t)
	require.Len(t, logs, 1)
	assert.Equal(t, "n1", logs[0].NodeID)
	assert.Equal(t, domain.LogLevelInfo, logs[0].Level)
	assert.Equal(t, msgNodeSucceeded, logs[0].Message)
}

func TestExecute_OutputsFlowDownstream(t *testing.T) {
	f := newFixture(t, newTestFactory(nil), nil, nil)

	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{
			{ID: "n2", Type: nodes.TypeTransform, Config: map[string]any{
				"mappings": map[string]any{"met": "{{n1.conditionMet}}", "run": "{{execution.id}}"},
			}},
			{ID: "n1", Type: nodes.TypeConditional, Config: map[string]any{
				"leftValue": 5, "rightValue": 3, "operator": ">",
			}},
		},
		Edges: []domain.EdgeDef{{From: "n1", To: "n2"}},
	}

	result, err := f.engine.Execute(context.Background(), def, f.exec.ID)
	require.NoError(t, err)

	n1, ok := result["n1"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, n1["conditionMet"])

	assert.Equal(t, map[string]any{"met": "true", "run": f.exec.ID.String()}, result["n2"])

	logs := f.logs(t)
	require.Len(t, logs, 2)
	assert.Equal(t, "n1", logs[0].NodeID)
	assert.Equal(t, "n2", logs[1].NodeID)
}

func TestExecute_UnknownNodeType(t *testing.T) {
	f := newFixture(t, nodes.DefaultFactory(), nil, nil)

	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{{ID: "bad", Type: "unknown_type"}},
	}

	_, err := f.engine.Execute(context.Background(), def, f.exec.ID)
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "bad", execErr.NodeID)
	assert.Equal(t, f.exec.ID, execErr.ExecutionID)
	assert.ErrorIs(t, err, nodes.ErrUnknownNodeType)

	got := f.execution(t)
	assert.Equal(t, domain.ExecutionStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "node bad execution failed")
	assert.Nil(t, got.ResultData)

	logs := f.logs(t)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.LogLevelError, logs[0].Level)
}

func TestExecute_ContinueOnError(t *testing.T) {
	f := newFixture(t, newTestFactory(func() (any, error) {
		return nil, errors.New("boom")
	}), nil, nil)

	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{
			{ID: "flaky", Type: "test", OnError: domain.ErrorPolicyContinue},
			{ID: "after", Type: nodes.TypeDelay, Config: map[string]any{"delaySeconds": 0}},
		},
		Edges: []domain.EdgeDef{{From: "flaky", To: "after"}},
	}

	result, err := f.engine.Execute(context.Background(), def, f.exec.ID)
	require.NoError(t, err)

	assert.NotContains(t, result, "flaky")
	assert.Contains(t, result, "after")

	logs := f.logs(t)
	require.Len(t, logs, 2)
	assert.Equal(t, "flaky", logs[0].NodeID)
	assert.Equal(t, domain.LogLevelError, logs[0].Level)
	assert.Equal(t, msgNodeFailed+"boom", logs[0].Message)
	assert.Equal(t, domain.LogLevelInfo, logs[1].Level)

	assert.Equal(t, domain.ExecutionStatusSuccess, f.execution(t).Status)
}

func TestExecute_AbortStopsRemainingNodes(t *testing.T) {
	f := newFixture(t, newTestFactory(func() (any, error) {
		return nil, errors.New("boom")
	}), nil, nil)

	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{
			{ID: "first", Type: "test"},
			{ID: "second", Type: nodes.TypeDelay, Config: map[string]any{"delaySeconds": 0}},
		},
		Edges: []domain.EdgeDef{{From: "first", To: "second"}},
	}

	_, err := f.engine.Execute(context.Background(), def, f.exec.ID)
	require.Error(t, err)
	assert.Equal(t, "node first execution failed: boom", err.Error())

	logs := f.logs(t)
	require.Len(t, logs, 1, "second node must not run")
	assert.Equal(t, domain.ExecutionStatusFailed, f.execution(t).Status)
}

func TestExecute_InvalidDefinition(t *testing.T) {
	f := newFixture(t, nodes.DefaultFactory(), nil, nil)

	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{{ID: "a", Type: nodes.TypeDelay}},
		Edges: []domain.EdgeDef{{From: "a", To: "ghost"}},
	}

	_, err := f.engine.Execute(context.Background(), def, f.exec.ID)
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Empty(t, execErr.NodeID)

	var valErr *engine.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, 0, valErr.Index)
	assert.ErrorIs(t, err, engine.ErrUnknownEdgeNode)

	got := f.execution(t)
	assert.Equal(t, domain.ExecutionStatusFailed, got.Status)
	assert.Nil(t, got.StartedAt, "rejected definition never reaches running")
	assert.Empty(t, f.logs(t))
}

func TestExecute_Cycle(t *testing.T) {
	f := newFixture(t, nodes.DefaultFactory(), nil, nil)

	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{{ID: "a", Type: nodes.TypeDelay}, {ID: "b", Type: nodes.TypeDelay}},
		Edges: []domain.EdgeDef{{From: "a", To: "b"}, {From: "b", To: "a"}},
	}

	_, err := f.engine.Execute(context.Background(), def, f.exec.ID)
	assert.ErrorIs(t, err, engine.ErrCyclicDependency)
	assert.Equal(t, domain.ExecutionStatusFailed, f.execution(t).Status)
}

func TestExecute_NilDefinition(t *testing.T) {
	f := newFixture(t, nodes.DefaultFactory(), nil, nil)

	_, err := f.engine.Execute(context.Background(), nil, f.exec.ID)
	assert.ErrorIs(t, err, engine.ErrNilDefinition)
	assert.Equal(t, domain.ExecutionStatusFailed, f.execution(t).Status)
}

func TestExecute_PanicRecovered(t *testing.T) {
	f := newFixture(t, newTestFactory(func() (any, error) {
		panic("kaboom")
	}), nil, nil)

	def := &domain.WorkflowDefinition{Nodes: []domain.NodeDef{{ID: "p", Type: "test"}}}

	_, err := f.engine.Execute(context.Background(), def, f.exec.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, nodes.ErrNodePanic)
	assert.Equal(t, domain.ExecutionStatusFailed, f.execution(t).Status)
}

func TestExecute_CancelledContext(t *testing.T) {
	f := newFixture(t, nodes.DefaultFactory(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{{ID: "n1", Type: nodes.TypeDelay, Config: map[string]any{"delaySeconds": 0}}},
	}

	_, err := f.engine.Execute(ctx, def, f.exec.ID)
	assert.ErrorIs(t, err, nodes.ErrNodeCancelled)

	// failed записывается даже при отменённом контексте.
	assert.Equal(t, domain.ExecutionStatusFailed, f.execution(t).Status)
}

func TestExecute_CancelledContextIgnoresContinue(t *testing.T) {
	f := newFixture(t, nodes.DefaultFactory(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{
			{ID: "n1", Type: nodes.TypeDelay, Config: map[string]any{"delaySeconds": 0}, OnError: domain.ErrorPolicyContinue},
			{ID: "n2", Type: nodes.TypeDelay, Config: map[string]any{"delaySeconds": 0}, OnError: domain.ErrorPolicyContinue},
		},
	}

	_, err := f.engine.Execute(ctx, def, f.exec.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, nodes.ErrNodeCancelled)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "n1", execErr.NodeID)

	got := f.execution(t)
	assert.Equal(t, domain.ExecutionStatusFailed, got.Status)
	assert.Nil(t, got.ResultData)
}

func TestExecute_CancelDuringDelayAbortsContinueNode(t *testing.T) {
	f := newFixture(t, nodes.DefaultFactory(), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{
			{ID: "wait", Type: nodes.TypeDelay, Config: map[string]any{"delaySeconds": 5}, OnError: domain.ErrorPolicyContinue},
		},
	}

	_, err := f.engine.Execute(ctx, def, f.exec.ID)
	assert.ErrorIs(t, err, nodes.ErrNodeCancelled)
	assert.Equal(t, domain.ExecutionStatusFailed, f.execution(t).Status)
}

func TestExecute_NonFiniteDelayFails(t *testing.T) {
	for _, value := range []string{"NaN", "Inf", "1e300"} {
		t.Run(value, func(t *testing.T) {
			f := newFixture(t, nodes.DefaultFactory(), nil, nil)

			def := &domain.WorkflowDefinition{
				Nodes: []domain.NodeDef{{ID: "n1", Type: nodes.TypeDelay, Config: map[string]any{"delaySeconds": value}}},
			}

			_, err := f.engine.Execute(context.Background(), def, f.exec.ID)
			assert.ErrorIs(t, err, nodes.ErrInvalidConfig)

			got := f.execution(t)
			assert.Equal(t, domain.ExecutionStatusFailed, got.Status)
			assert.Nil(t, got.ResultData)
		})
	}
}

func TestExecute_Variables(t *testing.T) {
	f := newFixture(t, newTestFactory(nil), nil, nil)

	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{{ID: "t", Type: nodes.TypeTransform, Config: map[string]any{
			"mappings": map[string]any{"env": "{{env}}", "region": "{{cfg.region}}"},
		}}},
	}

	vars := map[string]any{"env": "prod", "cfg": map[string]any{"region": "eu"}}
	result, err := f.engine.Execute(context.Background(), def, f.exec.ID, WithVariables(vars))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"env": "prod", "region": "eu"}, result["t"])
	assert.NotContains(t, vars, "execution", "caller variables must not be mutated")
}

// countingCache — PlanCache, считающий обращения.
type countingCache struct {
	plans map[*domain.WorkflowDefinition][]string
	hits  int
	puts  int
}

func (c *countingCache) Get(def *domain.WorkflowDefinition) ([]string, bool) {
	order, ok := c.plans[def]
	if ok {
		c.hits++
	}
	return order, ok
}

func (c *countingCache) Put(def *domain.WorkflowDefinition, order []string) {
	c.puts++
	c.plans[def] = order
}

func TestExecute_PlanCache(t *testing.T) {
	cache := &countingCache{plans: make(map[*domain.WorkflowDefinition][]string)}
	f := newFixture(t, nodes.DefaultFactory(), nil, cache)

	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{{ID: "n1", Type: nodes.TypeDelay, Config: map[string]any{"delaySeconds": 0}}},
	}

	_, err := f.engine.Execute(context.Background(), def, f.exec.ID)
	require.NoError(t, err)

	second := domain.NewExecution(f.exec.WorkflowID, domain.TriggerManual)
	require.NoError(t, f.store.Executions().Create(context.Background(), second))

	_, err = f.engine.Execute(context.Background(), def, second.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, cache.puts)
	assert.Equal(t, 1, cache.hits)
}

// flakyRecorder — Recorder, у которого отказывает журнал.
type flakyRecorder struct {
	*repo.MemoryStore
}

func (r flakyRecorder) AppendExecutionLog(context.Context, uuid.UUID, string, domain.LogLevel, string, map[string]any) error {
	return errors.New("log storage down")
}

func TestExecute_LogFailureIsNotFatal(t *testing.T) {
	store := repo.NewMemoryStore()
	exec := domain.NewExecution(uuid.New(), domain.TriggerManual)
	require.NoError(t, store.Executions().Create(context.Background(), exec))

	eng, err := New(Config{Factory: nodes.DefaultFactory(), Recorder: flakyRecorder{store}, Logger: quietLogger()})
	require.NoError(t, err)

	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{{ID: "n1", Type: nodes.TypeDelay, Config: map[string]any{"delaySeconds": 0}}},
	}

	_, err = eng.Execute(context.Background(), def, exec.ID)
	require.NoError(t, err)

	got, err := store.Executions().GetByID(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusSuccess, got.Status)
}

func TestExecute_StatusFailureSurfaces(t *testing.T) {
	// Execution не создан: UpdateExecutionStatus вернёт ErrNotFound.
	eng, err := New(Config{Factory: nodes.DefaultFactory(), Recorder: repo.NewMemoryStore(), Logger: quietLogger()})
	require.NoError(t, err)

	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{{ID: "n1", Type: nodes.TypeDelay, Config: map[string]any{"delaySeconds": 0}}},
	}

	_, err = eng.Execute(context.Background(), def, uuid.New())
	assert.ErrorIs(t, err, ErrRecorder)
}

func TestExecutionError_Message(t *testing.T) {
	cause := errors.New("cause")

	err := &ExecutionError{ExecutionID: uuid.New(), NodeID: "n1", Err: cause}
	assert.Equal(t, "node n1 execution failed: cause", err.Error())
	assert.ErrorIs(t, err, cause)

	err = &ExecutionError{ExecutionID: uuid.New(), Err: cause}
	assert.Equal(t, "cause", err.Error())
}

// jsonRecorder — Recorder, сериализующий результат как ExecutionRepo.
type jsonRecorder struct {
	*repo.MemoryStore
}

func (r jsonRecorder) RecordResult(ctx context.Context, id uuid.UUID, snapshot map[string]any) error {
	if _, err := json.Marshal(snapshot); err != nil {
		return err
	}
	return r.MemoryStore.RecordResult(ctx, id, snapshot)
}

func TestExecute_RecordResultFailureMarksFailed(t *testing.T) {
	store := repo.NewMemoryStore()
	exec := domain.NewExecution(uuid.New(), domain.TriggerManual)
	require.NoError(t, store.Executions().Create(context.Background(), exec))

	factory := newTestFactory(func() (any, error) {
		return map[string]any{"ch": make(chan int)}, nil
	})
	eng, err := New(Config{Factory: factory, Recorder: jsonRecorder{store}, Logger: quietLogger()})
	require.NoError(t, err)

	def := &domain.WorkflowDefinition{Nodes: []domain.NodeDef{{ID: "t", Type: "test"}}}

	_, err = eng.Execute(context.Background(), def, exec.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecorder)

	got, err := store.Executions().GetByID(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "record result")
}

// statusRecorder — Recorder, отказывающий на переходе в заданный статус.
type statusRecorder struct {
	*repo.MemoryStore
	reject domain.ExecutionStatus
}

func (r statusRecorder) UpdateExecutionStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus, errMsg string) error {
	if status == r.reject {
		return errors.New("status write rejected")
	}
	return r.MemoryStore.UpdateExecutionStatus(ctx, id, status, errMsg)
}

func TestExecute_MarkRunningFailureMarksFailed(t *testing.T) {
	store := repo.NewMemoryStore()
	exec := domain.NewExecution(uuid.New(), domain.TriggerManual)
	require.NoError(t, store.Executions().Create(context.Background(), exec))

	eng, err := New(Config{
		Factory:  nodes.DefaultFactory(),
		Recorder: statusRecorder{MemoryStore: store, reject: domain.ExecutionStatusRunning},
		Logger:   quietLogger(),
	})
	require.NoError(t, err)

	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{{ID: "n1", Type: nodes.TypeDelay, Config: map[string]any{"delaySeconds": 0}}},
	}

	_, err = eng.Execute(context.Background(), def, exec.ID)
	assert.ErrorIs(t, err, ErrRecorder)

	got, err := store.Executions().GetByID(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusFailed, got.Status)

	logs, err := store.Logs().ListByExecution(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Empty(t, logs, "no node runs before the execution is running")
}

func TestExecute_ConcurrentRunsAreIsolated(t *testing.T) {
	const runs = 16

	store := repo.NewMemoryStore()
	eng, err := New(Config{Factory: nodes.DefaultFactory(), Recorder: store, Logger: quietLogger()})
	require.NoError(t, err)

	// Одно определение на все запуски: резолв не должен менять его config.
	def := &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{
			{ID: "check", Type: nodes.TypeConditional, Config: map[string]any{
				"leftValue": "{{seed}}", "rightValue": runs / 2, "operator": ">=",
			}},
			{ID: "echo", Type: nodes.TypeConditional, Config: map[string]any{
				"leftValue": "{{check.leftValue}}", "rightValue": "{{seed}}", "operator": "==",
			}},
			{ID: "pause", Type: nodes.TypeDelay, Config: map[string]any{"delaySeconds": 0.001}},
		},
		Edges: []domain.EdgeDef{{From: "check", To: "echo"}, {From: "echo", To: "pause"}},
	}

	ids := make([]uuid.UUID, runs)
	for i := range ids {
		exec := domain.NewExecution(uuid.New(), domain.TriggerManual)
		require.NoError(t, store.Executions().Create(context.Background(), exec))
		ids[i] = exec.ID
	}

	results := make([]map[string]any, runs)
	var g errgroup.Group
	for i := range runs {
		g.Go(func() error {
			res, err := eng.Execute(context.Background(), def, ids[i], WithVariables(map[string]any{"seed": i}))
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	for i, res := range results {
		seed := strconv.Itoa(i)

		check := res["check"].(map[string]any)
		assert.Equal(t, seed, check["leftValue"])
		assert.Equal(t, i >= runs/2, check["conditionMet"])

		echo := res["echo"].(map[string]any)
		assert.Equal(t, true, echo["conditionMet"], "run %d saw another run's output", i)
		assert.Equal(t, seed, echo["leftValue"])

		got, err := store.Executions().GetByID(context.Background(), ids[i])
		require.NoError(t, err)
		assert.Equal(t, domain.ExecutionStatusSuccess, got.Status)
	}

	assert.Equal(t, "{{seed}}", def.Nodes[0].Config["leftValue"])
}
