// Package topology кэширует планы выполнения workflow.
//
// План — результат валидации и топологической сортировки определения.
// Он зависит только от структуры графа (id, type, on_error узлов и рёбер),
// поэтому один и тот же workflow, запускаемый по расписанию или из
// очереди, валидируется и сортируется один раз.
package topology

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/spaolacci/murmur3"

	"github.com/shaiso/procflow/internal/domain"
)

// Config — параметры кэша.
type Config struct {
	// Size — максимальное число планов в кэше.
	Size int64

	// TTL — время жизни плана. 0 — без ограничения.
	TTL time.Duration
}

// Cache — кэш порядков выполнения поверх ristretto.
// Потокобезопасен.
type Cache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// New создаёт кэш планов.
func New(cfg Config) (*Cache, error) {
	if cfg.Size <= 0 {
		cfg.Size = 1000
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10 * cfg.Size,
		MaxCost:     cfg.Size,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create plan cache: %w", err)
	}

	return &Cache{cache: cache, ttl: cfg.TTL}, nil
}

// Get возвращает закэшированный порядок выполнения.
func (c *Cache) Get(def *domain.WorkflowDefinition) ([]string, bool) {
	val, found := c.cache.Get(Key(def))
	if !found {
		return nil, false
	}

	order, ok := val.([]string)
	if !ok {
		return nil, false
	}
	return slices.Clone(order), true
}

// Put сохраняет порядок выполнения.
func (c *Cache) Put(def *domain.WorkflowDefinition, order []string) {
	key := Key(def)
	value := slices.Clone(order)

	if c.ttl > 0 {
		c.cache.SetWithTTL(key, value, 1, c.ttl)
		return
	}
	c.cache.Set(key, value, 1)
}

// Wait дожидается применения буферизованных записей.
func (c *Cache) Wait() {
	c.cache.Wait()
}

// Close освобождает ресурсы кэша.
func (c *Cache) Close() {
	c.cache.Close()
}

// shape — часть определения, влияющая на план.
type shape struct {
	Nodes [][3]string `json:"n"`
	Edges [][2]string `json:"e"`
}

// Key возвращает murmur3-128 хэш структуры графа.
// Config узлов в ключ не входит: на валидацию и порядок он не влияет.
func Key(def *domain.WorkflowDefinition) string {
	s := shape{
		Nodes: make([][3]string, len(def.Nodes)),
		Edges: make([][2]string, len(def.Edges)),
	}
	for i, n := range def.Nodes {
		s.Nodes[i] = [3]string{n.ID, n.Type, string(n.OnError)}
	}
	for i, e := range def.Edges {
		s.Edges[i] = [2]string{e.From, e.To}
	}

	raw, _ := json.Marshal(s)

	h128 := murmur3.New128()
	_, _ = h128.Write(raw)
	return hex.EncodeToString(h128.Sum(nil))
}
