// Package netsync implements the authority-side state synchronizer: it
// decides, per entity and per tick, whether a state change is worth
// sending, and produces the snapshots and deltas the server broadcasts.
package netsync

import (
	"fmt"
	"log"
	"time"

	"github.com/hollowcrest/orbstorm-mp/shared/gamemath"
	"github.com/hollowcrest/orbstorm-mp/shared/netconfig"
	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
)

// Priority classifies how often an entity participates in delta sync.
// The required interval between syncs is 2^tier ticks.
type Priority uint8

const (
	PriorityCritical Priority = iota // every tick
	PriorityHigh                     // every 2 ticks
	PriorityMedium                   // every 4 ticks
	PriorityLow                      // every 8 ticks
)

// Interval returns the minimum tick gap between syncs for this tier.
func (p Priority) Interval() uint32 { return 1 << p }

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	}
	return "unknown"
}

// SyncEntry is the authority's bookkeeping for one tracked entity.
// LastSyncedTick is monotonically non-decreasing.
type SyncEntry struct {
	EntityID       uint32
	Priority       Priority
	LastSyncedTick uint32
	LastKnown      netstate.EntityState
	Dirty          bool
	everSynced     bool
}

// Stats holds bandwidth diagnostics accumulated by the synchronizer.
type Stats struct {
	Snapshots     uint64
	Deltas        uint64
	BytesSent     uint64
	MessagesSent  uint64
	UpdatesMarked uint64 // updates that actually dirtied an entry
}

// Synchronizer owns per-entity priority and dirtiness bookkeeping for the
// authoritative endpoint. Single writer: it must only be touched from the
// server's tick context.
type Synchronizer struct {
	cfg      netconfig.Config
	entities *arena
	tick     uint32

	// baseline is the world the recipients are known to hold: the last
	// full snapshot merged with every delta sent since.
	baseline map[uint32]netstate.EntityState

	stats Stats
	now   func() time.Time
}

// NewSynchronizer creates a synchronizer with the given tuning.
func NewSynchronizer(cfg netconfig.Config) *Synchronizer {
	return &Synchronizer{
		cfg:      cfg,
		entities: newArena(),
		baseline: make(map[uint32]netstate.EntityState),
		now:      time.Now,
	}
}

// Tick advances the synchronizer's tick counter. Call exactly once per
// simulation tick, before building this tick's snapshot or delta.
func (s *Synchronizer) Tick() { s.tick++ }

// CurrentTick returns the current tick index.
func (s *Synchronizer) CurrentTick() uint32 { return s.tick }

// RegisterEntity starts tracking an entity at the given priority tier.
// Re-registering an id overwrites its entry.
func (s *Synchronizer) RegisterEntity(id uint32, p Priority) {
	s.entities.insert(SyncEntry{
		EntityID:  id,
		Priority:  p,
		LastKnown: netstate.NewEntityState(id),
		Dirty:     true,
	})
}

// UnregisterEntity stops tracking an entity. Its removal is announced in
// the next delta.
func (s *Synchronizer) UnregisterEntity(id uint32) {
	s.entities.remove(id)
}

// SetPriority reassigns an entity's tier. Unknown ids are ignored.
func (s *Synchronizer) SetPriority(id uint32, p Priority) {
	if e, ok := s.entities.get(id); ok {
		e.Priority = p
	}
}

// UpdateEntityState records the entity's state for this tick and marks the
// entry dirty when the change is worth syncing: position or velocity moved
// beyond the configured thresholds, or health or discrete state changed at
// all. Unknown ids auto-register at Medium priority unless
// StrictRegistration is set.
func (s *Synchronizer) UpdateEntityState(id uint32, state netstate.EntityState) error {
	e, ok := s.entities.get(id)
	if !ok {
		if s.cfg.StrictRegistration {
			return fmt.Errorf("netsync: update for unregistered entity %d", id)
		}
		log.Printf("[netsync] auto-registering entity %d at medium priority", id)
		e = s.entities.insert(SyncEntry{
			EntityID:  id,
			Priority:  PriorityMedium,
			LastKnown: state,
			Dirty:     true,
		})
		return nil
	}

	if !e.Dirty && s.changed(e.LastKnown, state) {
		e.Dirty = true
		s.stats.UpdatesMarked++
	}
	e.LastKnown = state
	return nil
}

func (s *Synchronizer) changed(old, new netstate.EntityState) bool {
	if gamemath.Dist(old.X, old.Y, new.X, new.Y) > s.cfg.PositionThreshold {
		return true
	}
	if gamemath.Dist(old.VelocityX, old.VelocityY, new.VelocityX, new.VelocityY) > s.cfg.VelocityThreshold {
		return true
	}
	return old.Health != new.Health || old.DiscreteState != new.DiscreteState
}

// ShouldSendSnapshot reports whether this tick is a periodic full-sync
// tick. Full snapshots bound drift from lost delta packets.
func (s *Synchronizer) ShouldSendSnapshot() bool {
	return s.tick%s.cfg.SnapshotInterval == 0
}

// CreateSnapshot builds the complete world state: every registered
// entity's last known state unconditionally. All dirty flags reset and the
// recipients' baseline is replaced.
func (s *Synchronizer) CreateSnapshot(waveNumber uint16, orbs []netstate.XPOrb) netstate.Snapshot {
	snap := netstate.Snapshot{
		Tick:        s.tick,
		TimestampMs: float64(s.now().UnixNano()) / 1e6,
		WaveNumber:  waveNumber,
		XPOrbs:      orbs,
		Entities:    make([]netstate.EntityState, 0, s.entities.len()),
	}

	clear(s.baseline)
	s.entities.each(func(e *SyncEntry) {
		snap.Entities = append(snap.Entities, e.LastKnown)
		s.baseline[e.EntityID] = e.LastKnown
		e.LastSyncedTick = s.tick
		e.Dirty = false
		e.everSynced = true
	})

	s.stats.Snapshots++
	return snap
}

// PeekSnapshot builds the complete world state without consuming any sync
// state: dirty flags, sync ticks and the recipients' baseline are left
// untouched. Meant for unicast catch-up sends (a late joiner), where
// resetting the shared baseline would silently drop pending one-shot
// updates for everyone else.
func (s *Synchronizer) PeekSnapshot(waveNumber uint16, orbs []netstate.XPOrb) netstate.Snapshot {
	snap := netstate.Snapshot{
		Tick:        s.tick,
		TimestampMs: float64(s.now().UnixNano()) / 1e6,
		WaveNumber:  waveNumber,
		XPOrbs:      orbs,
		Entities:    make([]netstate.EntityState, 0, s.entities.len()),
	}
	s.entities.each(func(e *SyncEntry) {
		snap.Entities = append(snap.Entities, e.LastKnown)
	})
	return snap
}

// CreateDelta builds the minimal change set for this tick, or nil when
// nothing is due. An entity is due iff it is dirty and at least 2^tier
// ticks have passed since its last sync; entities not yet due are simply
// omitted — their tier interval is the only staleness bound.
func (s *Synchronizer) CreateDelta() *netstate.Delta {
	d := &netstate.Delta{
		Tick:        s.tick,
		TimestampMs: float64(s.now().UnixNano()) / 1e6,
	}

	s.entities.each(func(e *SyncEntry) {
		if !e.Dirty || (e.everSynced && s.tick-e.LastSyncedTick < e.Priority.Interval()) {
			return
		}

		prev, known := s.baseline[e.EntityID]
		if !known {
			d.Added = append(d.Added, e.LastKnown)
		} else {
			ed := s.diff(prev, e.LastKnown)
			if ed.Mask == 0 {
				return
			}
			d.Updated = append(d.Updated, ed)
		}

		s.baseline[e.EntityID] = e.LastKnown
		e.LastSyncedTick = s.tick
		e.Dirty = false
		e.everSynced = true
	})

	// Anything still in the baseline but no longer registered was
	// unregistered since the last snapshot or delta.
	for id := range s.baseline {
		if _, ok := s.entities.get(id); !ok {
			d.Removed = append(d.Removed, id)
			delete(s.baseline, id)
		}
	}

	if d.Empty() {
		return nil
	}
	s.stats.Deltas++
	return d
}

// diff builds a partial state holding the fields that changed beyond
// their per-field thresholds.
func (s *Synchronizer) diff(prev, cur netstate.EntityState) netstate.EntityDelta {
	d := netstate.EntityDelta{EntityID: cur.EntityID}
	if gamemath.Dist(prev.X, prev.Y, cur.X, cur.Y) > s.cfg.PositionThreshold {
		d.Mask |= netstate.FieldPosition
		d.X, d.Y = cur.X, cur.Y
	}
	if gamemath.Dist(prev.VelocityX, prev.VelocityY, cur.VelocityX, cur.VelocityY) > s.cfg.VelocityThreshold {
		d.Mask |= netstate.FieldVelocity
		d.VelocityX, d.VelocityY = cur.VelocityX, cur.VelocityY
	}
	if prev.Health != cur.Health {
		d.Mask |= netstate.FieldHealth
		d.Health = cur.Health
	}
	if prev.Rotation != cur.Rotation {
		d.Mask |= netstate.FieldRotation
		d.Rotation = cur.Rotation
	}
	if prev.DiscreteState != cur.DiscreteState {
		d.Mask |= netstate.FieldDiscrete
		d.DiscreteState = cur.DiscreteState
	}
	return d
}

// RecordPayload accumulates bandwidth counters for an outbound payload.
func (s *Synchronizer) RecordPayload(byteLen int) {
	s.stats.BytesSent += uint64(byteLen)
	s.stats.MessagesSent++
}

// Stats returns a copy of the accumulated diagnostics.
func (s *Synchronizer) Stats() Stats { return s.stats }

// EntityCount returns the number of tracked entities.
func (s *Synchronizer) EntityCount() int { return s.entities.len() }

// Reset drops all registrations and baseline state. Used when a match
// ends: reconnection is a cold start at tick 0.
func (s *Synchronizer) Reset() {
	s.entities.clear()
	clear(s.baseline)
	s.tick = 0
	s.stats = Stats{}
}
