package job

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadworks/salesfilter/internal/model"
)

func TestTrackerSnapshotLifecycle(t *testing.T) {
	tr := NewTracker(time.Minute)
	tr.Start("j1", 10)

	snap, status, ok := tr.Snapshot("j1")
	require.True(t, ok)
	assert.Equal(t, 10, snap.TotalRows)
	assert.Equal(t, 0, snap.ProcessedRows)
	assert.Equal(t, model.JobStatusProcessing, status)

	tr.Step("j1", "scoring", "scoring rows")
	tr.RowDone("j1")
	tr.RowDone("j1")

	snap, _, _ = tr.Snapshot("j1")
	assert.Equal(t, 2, snap.ProcessedRows)
	assert.Equal(t, "scoring", snap.CurrentStep)

	tr.Finish("j1", model.JobStatusCompleted)
	snap, status, ok = tr.Snapshot("j1")
	require.True(t, ok, "finished jobs stay visible during the grace period")
	assert.Equal(t, model.JobStatusCompleted, status)
	assert.Equal(t, "completed", snap.CurrentStep)

	_, _, ok = tr.Snapshot("unknown")
	assert.False(t, ok)
}

func TestTrackerLogCursor(t *testing.T) {
	tr := NewTracker(time.Minute)
	tr.Start("j1", 1)

	tr.AppendLog("j1", model.LogEntry{Message: "one"})
	tr.AppendLog("j1", model.LogEntry{Message: "two"})

	logs, cursor := tr.LogsAfter("j1", 0)
	require.Len(t, logs, 2)
	assert.Equal(t, 2, cursor)

	logs, cursor = tr.LogsAfter("j1", cursor)
	assert.Empty(t, logs)
	assert.Equal(t, 2, cursor)

	tr.AppendLog("j1", model.LogEntry{Message: "three"})
	logs, cursor = tr.LogsAfter("j1", cursor)
	require.Len(t, logs, 1)
	assert.Equal(t, "three", logs[0].Message)
	assert.Equal(t, 3, cursor)
}

func TestTrackerSnapshotLogTail(t *testing.T) {
	tr := NewTracker(time.Minute)
	tr.Start("j1", 1)
	for i := 0; i < logTailSize+5; i++ {
		tr.AppendLog("j1", model.LogEntry{Message: "m"})
	}
	snap, _, _ := tr.Snapshot("j1")
	assert.Len(t, snap.LogTail, logTailSize)
}

func TestTrackerSubscribeNotifies(t *testing.T) {
	tr := NewTracker(time.Minute)
	tr.Start("j1", 1)

	ch, cancel, ok := tr.Subscribe("j1")
	require.True(t, ok)
	defer cancel()

	tr.RowDone("j1")
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a change notification")
	}

	// notifications coalesce, a burst yields at least one signal
	tr.RowDone("j1")
	tr.RowDone("j1")
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a coalesced notification")
	}

	_, _, ok = tr.Subscribe("unknown")
	assert.False(t, ok)
}

func TestTrackerEvictionAfterGrace(t *testing.T) {
	tr := NewTracker(20 * time.Millisecond)
	tr.Start("j1", 1)
	ch, _, ok := tr.Subscribe("j1")
	require.True(t, ok)

	tr.Finish("j1", model.JobStatusCompleted)

	require.Eventually(t, func() bool {
		_, _, ok := tr.Snapshot("j1")
		return !ok
	}, time.Second, 5*time.Millisecond, "snapshot should be evicted after the grace period")

	// subscriber channel is closed on eviction
	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Minute)
	tr.Start("j1", 100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				tr.RowDone("j1")
				tr.AppendLog("j1", model.LogEntry{Message: "m"})
				tr.Snapshot("j1")
				tr.LogsAfter("j1", 0)
			}
		}()
	}
	wg.Wait()

	snap, _, _ := tr.Snapshot("j1")
	assert.Equal(t, 100, snap.ProcessedRows)
}
