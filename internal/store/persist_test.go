package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-indexer-sol/internal/config"
	"task-indexer-sol/internal/logic/core"
)

func TestFlushAndLoad(t *testing.T) {
	dir := t.TempDir()

	s := NewEventStore(config.StoreConfig{Dir: dir})
	s.Ingest(lifecycleEvents("TASK1"))
	s.SetTitle("TASK1", "快照标题")
	require.NoError(t, s.Flush())

	// 新实例从快照恢复
	restored := NewEventStore(config.StoreConfig{Dir: dir})
	restored.Load()

	t.Run("事件与投影完整恢复", func(t *testing.T) {
		assert.Equal(t, 4, restored.Stats().TotalEvents)

		ht, ok := restored.Task("TASK1")
		require.True(t, ok)
		assert.Equal(t, core.StatusApproved, ht.FinalStatus)
		assert.Equal(t, "快照标题", ht.Title)
	})

	t.Run("判重集合跨重启生效", func(t *testing.T) {
		assert.Equal(t, 0, restored.Ingest(lifecycleEvents("TASK1")), "重启后重放同批事件必须全部判重")
	})

	t.Run("轨迹索引重建", func(t *testing.T) {
		trail := restored.Trail("TASK1")
		require.Len(t, trail, 4)
		assert.Equal(t, core.EventTaskCreated, trail[0].EventName)
	})

	t.Run("Recent 顺序保持", func(t *testing.T) {
		recent := restored.Recent(1)
		require.Len(t, recent, 1)
		assert.Equal(t, "s4", recent[0].Signature)
	})
}

func TestLoadCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, eventsFile), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, historicalFile), []byte("[broken"), 0o644))

	// 坏快照以空状态启动，不 panic
	s := NewEventStore(config.StoreConfig{Dir: dir})
	s.Load()
	assert.Equal(t, 0, s.Stats().TotalEvents)

	// 启动后照常可写
	assert.Equal(t, 4, s.Ingest(lifecycleEvents("TASK1")))
}

func TestLoadMissingDir(t *testing.T) {
	s := NewEventStore(config.StoreConfig{Dir: filepath.Join(t.TempDir(), "not-exist")})
	s.Load() // 首次启动无快照，非错误
	assert.Equal(t, 0, s.Stats().TotalEvents)
}

func TestDebouncedFlush(t *testing.T) {
	dir := t.TempDir()
	s := NewEventStore(config.StoreConfig{Dir: dir, FlushDebounceMs: 150})

	s.Ingest(lifecycleEvents("TASK1")[:1])
	s.Ingest(lifecycleEvents("TASK1")[1:2]) // 静默期内的连写合并为一次落盘

	_, err := os.Stat(filepath.Join(dir, eventsFile))
	assert.True(t, os.IsNotExist(err), "静默期未到不应落盘")

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, eventsFile))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "静默期后必须自动落盘")
}

func TestCloseFlushesImmediately(t *testing.T) {
	dir := t.TempDir()
	s := NewEventStore(config.StoreConfig{Dir: dir, FlushDebounceMs: 60_000})

	s.Ingest(lifecycleEvents("TASK1"))
	s.Close() // 不等去抖窗口，立刻落盘

	restored := NewEventStore(config.StoreConfig{Dir: dir})
	restored.Load()
	assert.Equal(t, 4, restored.Stats().TotalEvents)

	_, ok := restored.Task("TASK1")
	assert.True(t, ok)
}
