package topology

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/procflow/internal/domain"
)

func sampleDef() *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		Nodes: []domain.NodeDef{
			{ID: "a", Type: "delay", Config: map[string]any{"delaySeconds": 1}},
			{ID: "b", Type: "conditional"},
		},
		Edges: []domain.EdgeDef{{From: "a", To: "b"}},
	}
}

func TestKey_IgnoresConfig(t *testing.T) {
	def := sampleDef()
	other := sampleDef()
	other.Nodes[0].Config["delaySeconds"] = 99

	assert.Equal(t, Key(def), Key(other))

	other.Nodes[1].OnError = domain.ErrorPolicyContinue
	assert.NotEqual(t, Key(def), Key(other))

	other = sampleDef()
	other.Edges = nil
	assert.NotEqual(t, Key(def), Key(other))
}

func TestCache_PutGet(t *testing.T) {
	cache, err := New(Config{Size: 10, TTL: time.Minute})
	require.NoError(t, err)
	defer cache.Close()

	def := sampleDef()

	_, found := cache.Get(def)
	assert.False(t, found)

	cache.Put(def, []string{"a", "b"})
	cache.Wait()

	order, found := cache.Get(def)
	require.True(t, found)
	assert.Equal(t, []string{"a", "b"}, order)

	// Возвращается копия.
	order[0] = "mutated"
	again, _ := cache.Get(def)
	assert.Equal(t, "a", again[0])
}
