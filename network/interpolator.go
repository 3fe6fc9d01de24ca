package network

import (
	"sort"

	"github.com/hollowcrest/orbstorm-mp/shared/gamemath"
	"github.com/hollowcrest/orbstorm-mp/shared/netconfig"
	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
)

// interpSample is one timestamped state in an entity's buffer.
type interpSample struct {
	state       netstate.EntityState
	timestampMs float64
}

// Interpolator smooths remote entities between sparse server updates by
// buffering timestamped states and blending the pair bracketing a render
// time slightly in the past. It never extrapolates: on packet loss or
// stall the entity holds at its last real sample instead of overshooting.
//
// Single-threaded: fed by inbound-message handling and read by the render
// path, both on the same execution context.
type Interpolator struct {
	cfg     netconfig.Config
	buffers map[uint32][]interpSample
}

// NewInterpolator creates an interpolator with the given tuning.
func NewInterpolator(cfg netconfig.Config) *Interpolator {
	return &Interpolator{
		cfg:     cfg,
		buffers: make(map[uint32][]interpSample),
	}
}

// AddSnapshot inserts a state into the entity's buffer, keeping it
// timestamp-sorted and trimming the oldest entries past the cap.
func (ip *Interpolator) AddSnapshot(id uint32, state netstate.EntityState, timestampMs float64) {
	buf := ip.buffers[id]
	sample := interpSample{state: state, timestampMs: timestampMs}

	// Snapshots almost always arrive in order; the sort.Search only moves
	// samples on reordered delivery.
	i := sort.Search(len(buf), func(i int) bool { return buf[i].timestampMs > timestampMs })
	buf = append(buf, interpSample{})
	copy(buf[i+1:], buf[i:])
	buf[i] = sample

	if len(buf) > ip.cfg.MaxInterpBufferSize {
		buf = buf[len(buf)-ip.cfg.MaxInterpBufferSize:]
	}
	ip.buffers[id] = buf
}

// GetState computes the entity's state at renderTimeMs. Render time should
// be now − InterpolationDelayMs so a bracketing pair is almost always
// buffered despite jitter. Returns false when nothing is buffered.
func (ip *Interpolator) GetState(id uint32, renderTimeMs float64) (netstate.EntityState, bool) {
	buf := ip.buffers[id]
	if len(buf) == 0 {
		return netstate.EntityState{}, false
	}

	// First sample strictly after renderTime; before is then at i-1.
	i := sort.Search(len(buf), func(i int) bool { return buf[i].timestampMs > renderTimeMs })

	if i == 0 {
		// Render time precedes all data: no backward extrapolation.
		return buf[0].state, true
	}
	if i == len(buf) {
		// Render time is past all data: no forward extrapolation.
		return buf[len(buf)-1].state, true
	}

	before, after := buf[i-1], buf[i]
	span := after.timestampMs - before.timestampMs
	if span <= 0 {
		return after.state, true
	}
	t := gamemath.Clamp01(float32((renderTimeMs - before.timestampMs) / span))
	return gamemath.LerpState(before.state, after.state, t), true
}

// ClearOld trims samples older than the cutoff, always leaving at least
// two per entity so interpolation remains possible.
func (ip *Interpolator) ClearOld(beforeTimestampMs float64) {
	for id, buf := range ip.buffers {
		cut := 0
		for cut < len(buf)-2 && buf[cut].timestampMs < beforeTimestampMs {
			cut++
		}
		if cut > 0 {
			ip.buffers[id] = buf[cut:]
		}
	}
}

// RemoveEntity drops an entity's buffer entirely.
func (ip *Interpolator) RemoveEntity(id uint32) {
	delete(ip.buffers, id)
}

// BufferLen returns how many samples are held for an entity.
func (ip *Interpolator) BufferLen(id uint32) int { return len(ip.buffers[id]) }

// Reset drops every buffer. Leaving a match is a cold start.
func (ip *Interpolator) Reset() {
	clear(ip.buffers)
}
