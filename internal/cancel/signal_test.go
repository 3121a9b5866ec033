package cancel

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignalTriggerIdempotent(t *testing.T) {
	s := NewSignal()
	s.Trigger()
	s.Trigger() // must not panic on double-close
	assert.True(t, s.IsTriggered())
}

func TestSignalWaitUnblocksOnTrigger(t *testing.T) {
	s := NewSignal()
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Wait returned before Trigger")
	case <-time.After(20 * time.Millisecond):
	}
	s.Trigger()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Trigger")
	}
}

func TestSignalConcurrentTrigger(t *testing.T) {
	s := NewSignal()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Trigger()
		}()
	}
	wg.Wait()
	assert.True(t, s.IsTriggered())
}

func TestTrackerFiresOnReleaseWithoutCompletion(t *testing.T) {
	s := NewSignal()
	tr := NewTracker(s)
	tr.Release()
	assert.True(t, s.IsTriggered(), "expected signal fired when tracker released without MarkCompleted")
}

func TestTrackerDoesNotFireWhenCompleted(t *testing.T) {
	s := NewSignal()
	tr := NewTracker(s)
	tr.MarkCompleted()
	tr.Release()
	assert.False(t, s.IsTriggered(), "signal should not fire when request completed")
}

func TestTrackerReleaseIdempotent(t *testing.T) {
	s := NewSignal()
	tr := NewTracker(s)
	tr.Release()
	tr.Release() // must not panic or double-fire in a harmful way
	assert.True(t, s.IsTriggered())
}
