package backfill

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-indexer-sol/internal/config"
	"task-indexer-sol/internal/logic/eventparser"
	"task-indexer-sol/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(
		config.BackfillConfig{Endpoint: "http://127.0.0.1:8899"},
		eventparser.NewParser(""),
		store.NewEventStore(config.StoreConfig{}),
		nil,
	)
	require.NoError(t, err)
	return s
}

func TestNewServiceRequiresEndpoint(t *testing.T) {
	_, err := NewService(config.BackfillConfig{}, eventparser.NewParser(""),
		store.NewEventStore(config.StoreConfig{}), nil)
	assert.Error(t, err, "endpoint 为空不应创建服务")
}

// Stop 可被多个 goroutine 并发调用（ServiceGroup 退出与手动关停竞争），不允许重复 close
func TestStopIdempotent(t *testing.T) {
	s := newTestService(t)

	done := make(chan struct{})
	go func() {
		s.Start() // interval 为 0：只挂起等待 Stop
		close(done)
	}()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Stop()
		}()
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start 未随 Stop 退出")
	}
}
