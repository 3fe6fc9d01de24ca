package wire

import (
	"errors"
	"fmt"
	"math"

	crunch "github.com/superwhiskers/crunch/v3"

	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
)

// Fixed layout sizes in bytes.
const (
	InputSize          = 13 // tick u32 + 4 axes i16 + actionBits u8
	EntityStateSize    = 21 // id u32 + x,y f32 + vel i16×2 + health u16 + rot i16 + state u8
	SnapshotHeaderSize = 18 // tick u32 + timestamp f64 + wave u16 + entityCount u16 + orbCount u16
	XPOrbSize          = 12 // x f32 + y f32 + value u32
)

// Fixed-point scale factors. These are wire constants: axis ±1 maps onto
// the full i16 range, velocity keeps 0.01 precision, health 0.1, rotation
// ~0.001 rad.
const (
	axisScale     = 32767
	velocityScale = 100
	healthScale   = 10
	rotationScale = 1000
)

// ErrTruncated is returned when a buffer is too short for its declared
// layout. A corrupted buffer likely means transport corruption: callers
// should surface it, not recover locally.
var ErrTruncated = errors.New("wire: truncated buffer")

// EncodeInput packs one input sample into its 13-byte layout.
func EncodeInput(in netstate.InputSample) []byte {
	// crunch buffers are fixed-length, so allocate the full layout up front.
	buf := crunch.NewBuffer(make([]byte, InputSize))
	buf.WriteU32LENext([]uint32{in.Tick})
	buf.WriteI16LENext([]int16{
		quantizeAxis(in.MoveX),
		quantizeAxis(in.MoveY),
		quantizeAxis(in.AimX),
		quantizeAxis(in.AimY),
	})
	buf.WriteByteNext(in.ActionBits)
	return buf.Bytes()
}

// DecodeInput unpacks a 13-byte input sample.
func DecodeInput(data []byte) (netstate.InputSample, error) {
	if len(data) < InputSize {
		return netstate.InputSample{}, fmt.Errorf("%w: input needs %d bytes, got %d", ErrTruncated, InputSize, len(data))
	}
	buf := crunch.NewBuffer(data)
	in := netstate.InputSample{Tick: buf.ReadU32LENext(1)[0]}
	axes := buf.ReadI16LENext(4)
	in.MoveX = dequantizeAxis(axes[0])
	in.MoveY = dequantizeAxis(axes[1])
	in.AimX = dequantizeAxis(axes[2])
	in.AimY = dequantizeAxis(axes[3])
	in.ActionBits = buf.ReadByteNext()
	return in, nil
}

// EncodeEntityState packs one entity state into its 21-byte layout.
func EncodeEntityState(s netstate.EntityState) []byte {
	buf := crunch.NewBuffer(make([]byte, EntityStateSize))
	writeEntityState(buf, s)
	return buf.Bytes()
}

// DecodeEntityState unpacks a 21-byte entity state.
func DecodeEntityState(data []byte) (netstate.EntityState, error) {
	if len(data) < EntityStateSize {
		return netstate.EntityState{}, fmt.Errorf("%w: entity state needs %d bytes, got %d", ErrTruncated, EntityStateSize, len(data))
	}
	return readEntityState(crunch.NewBuffer(data)), nil
}

// EncodeSnapshot packs a full snapshot: 18-byte header, then the entity
// blocks, then the orb blocks.
func EncodeSnapshot(s netstate.Snapshot) []byte {
	size := SnapshotHeaderSize + len(s.Entities)*EntityStateSize + len(s.XPOrbs)*XPOrbSize
	buf := crunch.NewBuffer(make([]byte, size))
	buf.WriteU32LENext([]uint32{s.Tick})
	buf.WriteF64LENext([]float64{s.TimestampMs})
	buf.WriteU16LENext([]uint16{s.WaveNumber, uint16(len(s.Entities)), uint16(len(s.XPOrbs))})
	for _, e := range s.Entities {
		writeEntityState(buf, e)
	}
	for _, orb := range s.XPOrbs {
		buf.WriteF32LENext([]float32{orb.X, orb.Y})
		buf.WriteU32LENext([]uint32{orb.Value})
	}
	return buf.Bytes()
}

// DecodeSnapshot unpacks a snapshot, validating the declared counts against
// the buffer length before reading any block.
func DecodeSnapshot(data []byte) (netstate.Snapshot, error) {
	if len(data) < SnapshotHeaderSize {
		return netstate.Snapshot{}, fmt.Errorf("%w: snapshot header needs %d bytes, got %d", ErrTruncated, SnapshotHeaderSize, len(data))
	}
	buf := crunch.NewBuffer(data)
	snap := netstate.Snapshot{
		Tick:        buf.ReadU32LENext(1)[0],
		TimestampMs: buf.ReadF64LENext(1)[0],
	}
	counts := buf.ReadU16LENext(3)
	snap.WaveNumber = counts[0]
	entityCount, orbCount := int(counts[1]), int(counts[2])

	want := SnapshotHeaderSize + entityCount*EntityStateSize + orbCount*XPOrbSize
	if len(data) < want {
		return netstate.Snapshot{}, fmt.Errorf("%w: snapshot declares %d entities, %d orbs (%d bytes), got %d",
			ErrTruncated, entityCount, orbCount, want, len(data))
	}

	if entityCount > 0 {
		snap.Entities = make([]netstate.EntityState, 0, entityCount)
		for i := 0; i < entityCount; i++ {
			snap.Entities = append(snap.Entities, readEntityState(buf))
		}
	}
	if orbCount > 0 {
		snap.XPOrbs = make([]netstate.XPOrb, 0, orbCount)
		for i := 0; i < orbCount; i++ {
			pos := buf.ReadF32LENext(2)
			snap.XPOrbs = append(snap.XPOrbs, netstate.XPOrb{
				X:     pos[0],
				Y:     pos[1],
				Value: buf.ReadU32LENext(1)[0],
			})
		}
	}
	return snap, nil
}

func writeEntityState(buf *crunch.Buffer, s netstate.EntityState) {
	buf.WriteU32LENext([]uint32{s.EntityID})
	buf.WriteF32LENext([]float32{s.X, s.Y})
	buf.WriteI16LENext([]int16{
		quantizeI16(s.VelocityX, velocityScale),
		quantizeI16(s.VelocityY, velocityScale),
	})
	buf.WriteU16LENext([]uint16{quantizeU16(s.Health, healthScale)})
	buf.WriteI16LENext([]int16{quantizeI16(s.Rotation, rotationScale)})
	buf.WriteByteNext(s.DiscreteState)
}

func readEntityState(buf *crunch.Buffer) netstate.EntityState {
	s := netstate.EntityState{EntityID: buf.ReadU32LENext(1)[0]}
	pos := buf.ReadF32LENext(2)
	s.X, s.Y = pos[0], pos[1]
	vel := buf.ReadI16LENext(2)
	s.VelocityX = float32(vel[0]) / velocityScale
	s.VelocityY = float32(vel[1]) / velocityScale
	s.Health = float32(buf.ReadU16LENext(1)[0]) / healthScale
	s.Rotation = float32(buf.ReadI16LENext(1)[0]) / rotationScale
	s.DiscreteState = buf.ReadByteNext()
	return s
}

// quantizeAxis maps a normalized axis in [-1, 1] to the full i16 range.
func quantizeAxis(v float32) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(math.Round(float64(v) * axisScale))
}

func dequantizeAxis(q int16) float32 {
	return float32(q) / axisScale
}

func quantizeI16(v float32, scale float64) int16 {
	q := math.Round(float64(v) * scale)
	if q > math.MaxInt16 {
		q = math.MaxInt16
	} else if q < math.MinInt16 {
		q = math.MinInt16
	}
	return int16(q)
}

func quantizeU16(v float32, scale float64) uint16 {
	q := math.Round(float64(v) * scale)
	if q > math.MaxUint16 {
		q = math.MaxUint16
	} else if q < 0 {
		q = 0
	}
	return uint16(q)
}
