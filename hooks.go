package syncmerge

import (
	"sync"

	"github.com/agentstation/syncmerge/pkg/conflict"
)

// Hook function types for reconciliation events
type (
	// ConflictDetectedHook is called for every conflict record found
	ConflictDetectedHook func(rec *conflict.Record)

	// ResolvedHook is called after a conflict has been analyzed and validated
	ResolvedHook func(fr FieldReport)

	// BlockedHook is called when validation rejects a resolution
	BlockedHook func(fr FieldReport)
)

// hooks manages reconciliation callbacks
type hooks struct {
	mu         sync.RWMutex
	onDetected []ConflictDetectedHook
	onResolved []ResolvedHook
	onBlocked  []BlockedHook
}

func newHooks() *hooks {
	return &hooks{}
}

func (h *hooks) addDetected(fn ConflictDetectedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDetected = append(h.onDetected, fn)
}

func (h *hooks) addResolved(fn ResolvedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onResolved = append(h.onResolved, fn)
}

func (h *hooks) addBlocked(fn BlockedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onBlocked = append(h.onBlocked, fn)
}

func (h *hooks) detected(recs ...*conflict.Record) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, rec := range recs {
		for _, fn := range h.onDetected {
			fn(rec)
		}
	}
}

func (h *hooks) resolved(fr FieldReport) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if fr.Blocked {
		for _, fn := range h.onBlocked {
			fn(fr)
		}
	}
	for _, fn := range h.onResolved {
		fn(fr)
	}
}
