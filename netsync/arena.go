package netsync

// arena is a slot-map entity table: a dense slot slice plus an id index.
// Freed slots are reused so long-running matches with heavy churn do not
// grow the table, and iteration stays cache-friendly. The synchronizer is
// the only writer.
type arena struct {
	slots []slot
	index map[uint32]int // entity id -> slot position
	free  []int
}

type slot struct {
	used  bool
	entry SyncEntry
}

func newArena() *arena {
	return &arena{index: make(map[uint32]int)}
}

func (a *arena) len() int { return len(a.index) }

// get returns a mutable pointer into the arena, valid until the next
// insert or remove.
func (a *arena) get(id uint32) (*SyncEntry, bool) {
	i, ok := a.index[id]
	if !ok {
		return nil, false
	}
	return &a.slots[i].entry, true
}

func (a *arena) insert(e SyncEntry) *SyncEntry {
	if i, ok := a.index[e.EntityID]; ok {
		a.slots[i].entry = e
		return &a.slots[i].entry
	}
	var i int
	if n := len(a.free); n > 0 {
		i = a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[i] = slot{used: true, entry: e}
	} else {
		i = len(a.slots)
		a.slots = append(a.slots, slot{used: true, entry: e})
	}
	a.index[e.EntityID] = i
	return &a.slots[i].entry
}

func (a *arena) remove(id uint32) bool {
	i, ok := a.index[id]
	if !ok {
		return false
	}
	delete(a.index, id)
	a.slots[i] = slot{}
	a.free = append(a.free, i)
	return true
}

// each visits every live entry in slot order. The callback may mutate the
// entry but must not insert or remove.
func (a *arena) each(fn func(*SyncEntry)) {
	for i := range a.slots {
		if a.slots[i].used {
			fn(&a.slots[i].entry)
		}
	}
}

func (a *arena) clear() {
	a.slots = a.slots[:0]
	a.free = a.free[:0]
	clear(a.index)
}
