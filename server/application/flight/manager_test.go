package flight

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"shipjoy/server/application/input"
	"shipjoy/server/application/lobby"
	"shipjoy/server/domain"

	"pgregory.net/rapid"
)

const dt = 1.0 / 60

type fakeControls map[input.SlotID]input.State

func (f fakeControls) State(id input.SlotID) (input.State, error) {
	st, ok := f[id]
	if !ok {
		return input.State{}, input.ErrNoControllerForSlot
	}
	return st, nil
}

func (f fakeControls) Active() []input.SlotID {
	var out []input.SlotID
	for i := range input.MaxSlots {
		id, _ := input.SlotFromOrdinal(i)
		if _, ok := f[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

var arena = domain.Vec2{X: 800, Y: 600}

func newTestManager(slots ...input.SlotID) *Manager {
	launches := make([]lobby.Launch, len(slots))
	for i, s := range slots {
		launches[i] = lobby.Launch{Slot: s, Label: s.Label(), ShipID: 1}
	}
	return NewManager(launches, arena, DefaultTuning(), rand.New(rand.NewPCG(3, 4)))
}

func TestNewManager_SpawnsInsideArenaAtRest(t *testing.T) {
	m := newTestManager(input.KeyboardLeft, input.Gamepad(1))
	players := m.Players()
	if len(players) != 2 {
		t.Fatalf("players = %d, want 2", len(players))
	}
	for _, p := range players {
		if p.Position.X < 0 || p.Position.X >= arena.X || p.Position.Y < 0 || p.Position.Y >= arena.Y {
			t.Errorf("%s Position = %+v, want inside arena", p.Slot, p.Position)
		}
		if p.Velocity != (domain.Vec2{}) {
			t.Errorf("%s Velocity = %+v, want zero", p.Slot, p.Velocity)
		}
		if p.Power != DefaultTuning().MaxPower || p.Health != DefaultTuning().MaxHealth {
			t.Errorf("%s Power/Health = %v/%v, want max", p.Slot, p.Power, p.Health)
		}
	}
}

func TestManager_ThrustAlongHeading(t *testing.T) {
	m := newTestManager(input.Gamepad(0))
	p := m.players[input.Gamepad(0).Ordinal()]
	p.Position = domain.Vec2{X: 400, Y: 300}

	m.Update(dt, arena, fakeControls{input.Gamepad(0): {Held: input.ButtonUp}})

	// 向き0は画面上向き
	if p.Velocity.Y >= 0 || math.Abs(p.Velocity.X) > 1e-9 {
		t.Errorf("Velocity = %+v, want straight up", p.Velocity)
	}
	want := 200 * dt * 0.98
	if math.Abs(-p.Velocity.Y-want) > 1e-9 {
		t.Errorf("speed = %v, want %v", -p.Velocity.Y, want)
	}
	if !p.Thrusting {
		t.Error("Thrusting = false, want true")
	}
}

func TestManager_ReverseIsHalfThrust(t *testing.T) {
	m := newTestManager(input.Gamepad(0))
	p := m.players[input.Gamepad(0).Ordinal()]
	m.Update(dt, arena, fakeControls{input.Gamepad(0): {Held: input.ButtonDown}})
	want := 100 * dt * 0.98
	if math.Abs(p.Velocity.Y-want) > 1e-9 {
		t.Errorf("Velocity.Y = %v, want %v", p.Velocity.Y, want)
	}
}

func TestManager_RotationIsContinuous(t *testing.T) {
	m := newTestManager(input.KeyboardRight)
	p := m.players[input.KeyboardRight.Ordinal()]
	controls := fakeControls{input.KeyboardRight: {Held: input.ButtonRight}}
	for range 30 {
		m.Update(dt, arena, controls)
	}
	if want := 3 * 30 * dt; math.Abs(p.Heading-want) > 1e-9 {
		t.Errorf("Heading = %v, want %v", p.Heading, want)
	}

	controls[input.KeyboardRight] = input.State{Held: input.ButtonLeft}
	for range 60 {
		m.Update(dt, arena, controls)
	}
	if p.Heading < 0 || p.Heading >= 2*math.Pi {
		t.Errorf("Heading = %v, want normalised to [0, 2π)", p.Heading)
	}
}

func TestManager_NoThrustWithoutPower(t *testing.T) {
	m := newTestManager(input.Gamepad(0))
	p := m.players[input.Gamepad(0).Ordinal()]
	p.Power = 0
	m.Update(dt, arena, fakeControls{input.Gamepad(0): {Held: input.ButtonUp}})
	if p.Velocity != (domain.Vec2{}) {
		t.Errorf("Velocity = %+v, want zero without power", p.Velocity)
	}
}

func TestManager_FrictionIsMultiplicative(t *testing.T) {
	m := newTestManager(input.Gamepad(0))
	p := m.players[input.Gamepad(0).Ordinal()]
	p.Velocity = domain.Vec2{X: 100}
	m.Update(dt, arena, fakeControls{})
	if math.Abs(p.Velocity.X-98) > 1e-9 {
		t.Errorf("Velocity.X = %v, want 98", p.Velocity.X)
	}
}

func TestManager_ToroidalWrap(t *testing.T) {
	m := newTestManager(input.Gamepad(0))
	p := m.players[input.Gamepad(0).Ordinal()]
	p.Position = domain.Vec2{X: arena.X - 1, Y: 100}
	p.Velocity = domain.Vec2{X: 300}

	m.Update(dt, arena, fakeControls{})

	if p.Position.X <= 0 || p.Position.X >= 10 {
		t.Errorf("Position.X = %v, want small positive after wrap", p.Position.X)
	}

	p.Position = domain.Vec2{X: 10, Y: 1}
	p.Velocity = domain.Vec2{Y: -300}
	m.Update(dt, arena, fakeControls{})
	if p.Position.Y <= arena.Y-10 || p.Position.Y >= arena.Y {
		t.Errorf("Position.Y = %v, want just below %v", p.Position.Y, arena.Y)
	}
}

func TestWrapPosition_IgnoresEmptyBounds(t *testing.T) {
	got := WrapPosition(domain.Vec2{X: -5, Y: 1200}, domain.Vec2{X: 0, Y: 600})
	if got.X != -5 || got.Y != 0 {
		t.Errorf("WrapPosition = %+v, want {-5 0}", got)
	}
}

func TestManager_MenuReturnsToLobby(t *testing.T) {
	m := newTestManager(input.KeyboardLeft, input.Gamepad(0))
	if m.Update(dt, arena, fakeControls{input.Gamepad(0): {Held: input.ButtonMenu}}) {
		t.Error("held menu without edge should not return to lobby")
	}
	if !m.Update(dt, arena, fakeControls{input.Gamepad(0): {Pressed: input.ButtonMenu, Held: input.ButtonMenu}}) {
		t.Error("menu edge should return to lobby")
	}
}

func TestManager_MenuFromControllerWithoutShip(t *testing.T) {
	m := newTestManager(input.Gamepad(0))
	controls := fakeControls{
		input.Gamepad(0):   {},
		input.KeyboardLeft: {Pressed: input.ButtonMenu, Held: input.ButtonMenu},
	}
	if !m.Update(dt, arena, controls) {
		t.Error("menu edge from a browsing controller should return to lobby")
	}
}

func TestManager_RemoveOnlyDropsOnePlayer(t *testing.T) {
	m := newTestManager(input.KeyboardLeft, input.Gamepad(0))
	if err := m.Remove(input.Gamepad(0)); err != nil {
		t.Fatalf("Remove error = %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
	if _, err := m.Player(input.KeyboardLeft); err != nil {
		t.Errorf("remaining player lookup error = %v", err)
	}
	if err := m.Remove(input.Gamepad(0)); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("second Remove err = %v, want %v", err, ErrPlayerNotFound)
	}
}

// 推力を使い続けても 0 未満にならず、待機し続けても最大値を超えない
func TestManager_PowerBoundsProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tuning := DefaultTuning()
		tuning.PowerRegen = rapid.Float64Range(0, 200).Draw(rt, "regen")
		tuning.ThrustCost = rapid.Float64Range(0, 5000).Draw(rt, "cost")
		tuning.MaxPower = rapid.Float64Range(1, 2000).Draw(rt, "max")

		m := NewManager([]lobby.Launch{{Slot: input.Gamepad(0)}}, arena, tuning, rand.New(rand.NewPCG(1, 1)))
		p := m.players[input.Gamepad(0).Ordinal()]
		p.Power = rapid.Float64Range(0, tuning.MaxPower).Draw(rt, "start")

		steps := rapid.SliceOfN(rapid.SampledFrom([]input.Buttons{0, input.ButtonUp, input.ButtonDown, input.ButtonUp | input.ButtonDown}), 1, 300).Draw(rt, "steps")
		for _, held := range steps {
			step := rapid.Float64Range(0, 0.1).Draw(rt, "dt")
			m.Update(step, arena, fakeControls{input.Gamepad(0): {Held: held}})
			if p.Power < 0 || p.Power > tuning.MaxPower {
				rt.Fatalf("Power = %v, want within [0, %v]", p.Power, tuning.MaxPower)
			}
		}
	})
}

func TestTuning_Validate(t *testing.T) {
	if err := DefaultTuning().Validate(); err != nil {
		t.Fatalf("DefaultTuning().Validate() = %v", err)
	}
	bad := DefaultTuning()
	bad.Friction = 1.5
	if err := bad.Validate(); !errors.Is(err, ErrInvalidTuning) {
		t.Errorf("err = %v, want %v", err, ErrInvalidTuning)
	}
	bad = DefaultTuning()
	bad.MaxPower = math.NaN()
	if err := bad.Validate(); !errors.Is(err, ErrInvalidTuning) {
		t.Errorf("err = %v, want %v", err, ErrInvalidTuning)
	}
}
