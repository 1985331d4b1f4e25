package state

import "sync"

type memoryManager struct {
	mu     sync.RWMutex
	states map[int64]State
}

// NewMemoryManager returns a Manager backed by a mutex-guarded map.
func NewMemoryManager() Manager {
	return &memoryManager{states: make(map[int64]State)}
}

func (m *memoryManager) GetState(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.states[userID]; ok {
		return st
	}
	return StateIdle
}

func (m *memoryManager) SetState(userID int64, st State) {
	if st == StateIdle || st == "" {
		m.ClearState(userID)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = st
}

// ClearState drops the entry so idle users cost no memory.
func (m *memoryManager) ClearState(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID)
}

func (m *memoryManager) InProgress(userID int64) bool {
	return m.GetState(userID) != StateIdle
}

func (m *memoryManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}
