package state

import (
	"sync"
	"testing"
)

const stateAwaiting State = "awaiting"

func TestMemoryManagerTransitions(t *testing.T) {
	m := NewMemoryManager()
	if got := m.GetState(1); got != StateIdle {
		t.Fatalf("unknown user state = %q, want idle", got)
	}

	m.SetState(1, stateAwaiting)
	if !m.InProgress(1) || m.GetState(1) != stateAwaiting {
		t.Fatalf("state after set = %q", m.GetState(1))
	}
	if m.InProgress(2) {
		t.Fatal("other users must stay idle")
	}

	m.ClearState(1)
	if m.InProgress(1) || m.Len() != 0 {
		t.Fatalf("state after clear = %q, len %d", m.GetState(1), m.Len())
	}

	m.SetState(3, stateAwaiting)
	m.SetState(3, StateIdle)
	if m.Len() != 0 {
		t.Fatalf("setting idle must drop the entry, len %d", m.Len())
	}
}

func TestMemoryManagerConcurrentUse(t *testing.T) {
	m := NewMemoryManager()
	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			m.SetState(id, stateAwaiting)
			_ = m.InProgress(id)
		}(i)
	}
	wg.Wait()
	if m.Len() != 50 {
		t.Fatalf("len = %d, want 50", m.Len())
	}
}
