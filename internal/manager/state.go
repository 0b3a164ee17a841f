package manager

import (
	"time"

	"github.com/loykin/spawnd/internal/process"
	"github.com/loykin/spawnd/internal/registry"
)

// State is an immutable view of the loop published after every tick.
type State struct {
	Records   []process.Snapshot      `json:"records"`
	Global    registry.GlobalSettings `json:"global"`
	Stopping  bool                    `json:"stopping"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Find returns the snapshot for name.
func (s *State) Find(name string) (process.Snapshot, bool) {
	for _, r := range s.Records {
		if r.Name == name {
			return r, true
		}
	}
	return process.Snapshot{}, false
}

// Snapshot returns the state published by the last tick.
func (m *Manager) Snapshot() *State { return m.snap.Load() }

func (m *Manager) publish() {
	recs := m.reg.Records()
	st := &State{
		Records:   make([]process.Snapshot, 0, len(recs)),
		Global:    m.reg.Global(),
		Stopping:  m.stopping,
		UpdatedAt: m.now(),
	}
	for _, r := range recs {
		st.Records = append(st.Records, r.Snapshot())
	}
	m.snap.Store(st)
}
