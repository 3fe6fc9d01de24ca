package wire

import (
	"errors"
	"math"
	"testing"

	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
)

func TestEncodeInput_RoundTrip(t *testing.T) {
	in := netstate.InputSample{
		Tick:       4821,
		MoveX:      1,
		MoveY:      -0.5,
		AimX:       0.25,
		AimY:       -1,
		ActionBits: 0b0101,
	}

	data := EncodeInput(in)
	if len(data) != InputSize {
		t.Fatalf("encoded input is %d bytes, want %d", len(data), InputSize)
	}

	got, err := DecodeInput(data)
	if err != nil {
		t.Fatalf("DecodeInput returned error: %v", err)
	}
	if got.Tick != in.Tick {
		t.Errorf("tick = %d, want %d", got.Tick, in.Tick)
	}
	if got.ActionBits != in.ActionBits {
		t.Errorf("actionBits = %b, want %b", got.ActionBits, in.ActionBits)
	}

	const axisEps = 1.0 / 32767
	axes := [][2]float32{
		{got.MoveX, in.MoveX},
		{got.MoveY, in.MoveY},
		{got.AimX, in.AimX},
		{got.AimY, in.AimY},
	}
	for i, pair := range axes {
		if math.Abs(float64(pair[0]-pair[1])) > axisEps {
			t.Errorf("axis %d = %f, want %f within %f", i, pair[0], pair[1], axisEps)
		}
	}
}

func TestDecodeInput_Truncated(t *testing.T) {
	if _, err := DecodeInput(make([]byte, InputSize-1)); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestEncodeEntityState_RoundTrip(t *testing.T) {
	s := netstate.EntityState{
		EntityID:      90210,
		X:             123.5,
		Y:             -77.25,
		VelocityX:     3.33,
		VelocityY:     -12.01,
		Health:        87.5,
		Rotation:      -2.5,
		DiscreteState: 3,
	}

	data := EncodeEntityState(s)
	if len(data) != EntityStateSize {
		t.Fatalf("encoded state is %d bytes, want %d", len(data), EntityStateSize)
	}

	got, err := DecodeEntityState(data)
	if err != nil {
		t.Fatalf("DecodeEntityState returned error: %v", err)
	}
	if got.EntityID != s.EntityID {
		t.Errorf("entityID = %d, want %d", got.EntityID, s.EntityID)
	}
	// Position is carried as f32: exact.
	if got.X != s.X || got.Y != s.Y {
		t.Errorf("position = (%f, %f), want (%f, %f)", got.X, got.Y, s.X, s.Y)
	}
	if math.Abs(float64(got.VelocityX-s.VelocityX)) > 0.005 || math.Abs(float64(got.VelocityY-s.VelocityY)) > 0.005 {
		t.Errorf("velocity = (%f, %f), want (%f, %f) within 0.005", got.VelocityX, got.VelocityY, s.VelocityX, s.VelocityY)
	}
	if math.Abs(float64(got.Health-s.Health)) > 0.05 {
		t.Errorf("health = %f, want %f within 0.05", got.Health, s.Health)
	}
	if math.Abs(float64(got.Rotation-s.Rotation)) > 0.0005 {
		t.Errorf("rotation = %f, want %f within 0.0005", got.Rotation, s.Rotation)
	}
	if got.DiscreteState != s.DiscreteState {
		t.Errorf("discreteState = %d, want %d", got.DiscreteState, s.DiscreteState)
	}
}

func TestEncodeEntityState_DefaultHealth(t *testing.T) {
	// The 100 default is part of the wire contract for producers that never
	// touch health.
	got, err := DecodeEntityState(EncodeEntityState(netstate.NewEntityState(7)))
	if err != nil {
		t.Fatalf("DecodeEntityState returned error: %v", err)
	}
	if got.Health != netstate.DefaultHealth {
		t.Fatalf("health = %f, want %d", got.Health, netstate.DefaultHealth)
	}
}

func TestEncodeSnapshot_RoundTrip(t *testing.T) {
	snap := netstate.Snapshot{
		Tick:        300,
		TimestampMs: 1712345678901.5,
		WaveNumber:  12,
		Entities: []netstate.EntityState{
			{EntityID: 1, X: 10, Y: 20, Health: 100},
			{EntityID: 2, X: -5.5, Y: 0.25, VelocityX: 1.5, Health: 42.5, Rotation: 1.25, DiscreteState: 1},
		},
		XPOrbs: []netstate.XPOrb{
			{X: 4, Y: 8, Value: 25},
			{X: -1.5, Y: 3.5, Value: 100},
		},
	}

	data := EncodeSnapshot(snap)
	wantLen := SnapshotHeaderSize + 2*EntityStateSize + 2*XPOrbSize
	if len(data) != wantLen {
		t.Fatalf("encoded snapshot is %d bytes, want %d", len(data), wantLen)
	}

	got, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot returned error: %v", err)
	}
	if got.Tick != snap.Tick || got.TimestampMs != snap.TimestampMs || got.WaveNumber != snap.WaveNumber {
		t.Errorf("header = (%d, %f, %d), want (%d, %f, %d)",
			got.Tick, got.TimestampMs, got.WaveNumber, snap.Tick, snap.TimestampMs, snap.WaveNumber)
	}
	if len(got.Entities) != 2 || len(got.XPOrbs) != 2 {
		t.Fatalf("got %d entities, %d orbs, want 2 and 2", len(got.Entities), len(got.XPOrbs))
	}
	if got.Entities[0].EntityID != 1 || got.Entities[1].EntityID != 2 {
		t.Errorf("entity ids = %d, %d, want 1, 2", got.Entities[0].EntityID, got.Entities[1].EntityID)
	}
	if got.XPOrbs[1] != snap.XPOrbs[1] {
		t.Errorf("orb = %+v, want %+v", got.XPOrbs[1], snap.XPOrbs[1])
	}
}

func TestEncodeSnapshot_Empty(t *testing.T) {
	got, err := DecodeSnapshot(EncodeSnapshot(netstate.Snapshot{Tick: 1}))
	if err != nil {
		t.Fatalf("DecodeSnapshot returned error: %v", err)
	}
	if len(got.Entities) != 0 || len(got.XPOrbs) != 0 {
		t.Fatalf("expected empty snapshot, got %d entities, %d orbs", len(got.Entities), len(got.XPOrbs))
	}
}

func TestDecodeSnapshot_TruncatedBody(t *testing.T) {
	snap := netstate.Snapshot{
		Tick:     1,
		Entities: []netstate.EntityState{{EntityID: 1}, {EntityID: 2}},
	}
	data := EncodeSnapshot(snap)

	// Declared counts no longer match the available bytes.
	if _, err := DecodeSnapshot(data[:len(data)-5]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, err := DecodeSnapshot(data[:SnapshotHeaderSize-1]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated for short header, got %v", err)
	}
}

func TestDeltaFallback_RoundTrip(t *testing.T) {
	d := &netstate.Delta{
		Tick:        55,
		TimestampMs: 2750,
		Added:       []netstate.EntityState{{EntityID: 9, X: 1, Health: 100}},
		Updated: []netstate.EntityDelta{
			{EntityID: 3, Mask: netstate.FieldPosition | netstate.FieldHealth, X: 5, Y: 6, Health: 12},
		},
		Removed: []uint32{4, 8},
	}

	data, err := EncodeDelta(d)
	if err != nil {
		t.Fatalf("EncodeDelta returned error: %v", err)
	}
	if data[0] != FormatVersion {
		t.Fatalf("version tag = %d, want %d", data[0], FormatVersion)
	}

	got, err := DecodeDelta(data)
	if err != nil {
		t.Fatalf("DecodeDelta returned error: %v", err)
	}
	if got.Tick != d.Tick || len(got.Added) != 1 || len(got.Updated) != 1 || len(got.Removed) != 2 {
		t.Fatalf("decoded delta = %+v, want %+v", got, d)
	}
	if !got.Updated[0].Mask.Has(netstate.FieldPosition) || got.Updated[0].Mask.Has(netstate.FieldVelocity) {
		t.Errorf("mask = %b, want position+health only", got.Updated[0].Mask)
	}
}

func TestDecodeDelta_UnknownVersion(t *testing.T) {
	data, err := EncodeDelta(&netstate.Delta{Tick: 1})
	if err != nil {
		t.Fatalf("EncodeDelta returned error: %v", err)
	}
	data[0] = 99
	if _, err := DecodeDelta(data); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestDecodeDelta_TooShort(t *testing.T) {
	if _, err := DecodeDelta([]byte{FormatVersion}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}
