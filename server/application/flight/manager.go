// Package flight は発進後の機体の運動と資源を管理します。
package flight

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"shipjoy/server/application/catalog"
	"shipjoy/server/application/input"
	"shipjoy/server/application/lobby"
	"shipjoy/server/domain"
	"shipjoy/utils"
)

var ErrPlayerNotFound = errors.New("flight player not found")

// Player は飛行中の機体1機分の状態です。
// Heading はラジアンで、0 が画面上向き、正の方向が時計回りです。
type Player struct {
	Slot      input.SlotID
	Label     string
	ShipID    catalog.ShipID
	Position  domain.Vec2
	Velocity  domain.Vec2
	Heading   float64
	Power     float64
	Health    float64
	Score     int
	Thrusting bool
	Reversing bool
}

// Controls は飛行中に参照するコントローラーの境界です。
type Controls interface {
	State(id input.SlotID) (input.State, error)
	// Active はアクティブなスロットを返します。機体を持たないコントローラーもメニューを押せます。
	Active() []input.SlotID
}

type Manager struct {
	tuning  Tuning
	players [input.MaxSlots]*Player
}

// NewManager は発進したプレイヤーをアリーナ内のランダムな位置に、速度0、最大パワー/体力で配置します。
func NewManager(launches []lobby.Launch, bounds domain.Vec2, tuning Tuning, rng *rand.Rand) *Manager {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	m := &Manager{tuning: tuning}
	for _, l := range launches {
		if !l.Slot.Valid() {
			continue
		}
		m.players[l.Slot.Ordinal()] = &Player{
			Slot:     l.Slot,
			Label:    l.Label,
			ShipID:   l.ShipID,
			Position: domain.Vec2{X: rng.Float64() * bounds.X, Y: rng.Float64() * bounds.Y},
			Power:    tuning.MaxPower,
			Health:   tuning.MaxHealth,
		}
	}
	return m
}

// Update は全機体を dt 秒進めます。アクティブなコントローラーのいずれかでメニューが押された場合 true を返します。
func (m *Manager) Update(dt float64, bounds domain.Vec2, controls Controls) (returnToLobby bool) {
	for _, p := range m.players {
		if p == nil {
			continue
		}
		st, err := controls.State(p.Slot)
		if err != nil {
			st = input.State{}
		}
		m.step(p, dt, bounds, st)
	}
	for _, id := range controls.Active() {
		if st, err := controls.State(id); err == nil && st.WasPressed(input.ButtonMenu) {
			returnToLobby = true
		}
	}
	return returnToLobby
}

func (m *Manager) step(p *Player, dt float64, bounds domain.Vec2, st input.State) {
	t := m.tuning

	if st.IsHeld(input.ButtonLeft) {
		p.Heading -= t.RotationSpeed * dt
	}
	if st.IsHeld(input.ButtonRight) {
		p.Heading += t.RotationSpeed * dt
	}
	p.Heading = wrap(p.Heading, 2*math.Pi)

	p.Thrusting = st.IsHeld(input.ButtonUp)
	p.Reversing = st.IsHeld(input.ButtonDown)

	forward := domain.Vec2{X: math.Cos(p.Heading - math.Pi/2), Y: math.Sin(p.Heading - math.Pi/2)}
	if p.Power > 0 {
		if p.Thrusting {
			p.Velocity = p.Velocity.Add(forward.Scale(t.Thrust * dt))
		}
		if p.Reversing {
			p.Velocity = p.Velocity.Add(forward.Scale(-t.ReverseThrust * dt))
		}
	}

	p.Velocity = p.Velocity.Scale(t.Friction)
	p.Position = p.Position.Add(p.Velocity.Scale(dt))
	if !utils.FiniteVec(p.Position) || !utils.FiniteVec(p.Velocity) {
		p.Position = bounds.Scale(0.5)
		p.Velocity = domain.Vec2{}
	}
	p.Position = WrapPosition(p.Position, bounds)

	p.Power = math.Min(t.MaxPower, p.Power+t.PowerRegen*dt)
	if (p.Thrusting || p.Reversing) && p.Power > 0 {
		p.Power = math.Max(0, p.Power-t.ThrustCost*dt)
	}
}

// WrapPosition はアリーナ境界でトーラス状に折り返します。境界が0以下の軸は折り返しません。
func WrapPosition(pos, bounds domain.Vec2) domain.Vec2 {
	if bounds.X > 0 {
		pos.X = wrap(pos.X, bounds.X)
	}
	if bounds.Y > 0 {
		pos.Y = wrap(pos.Y, bounds.Y)
	}
	return pos
}

func wrap(v, size float64) float64 {
	v = math.Mod(v, size)
	if v < 0 {
		v += size
	}
	return v
}

// Remove は切断したスロットの機体だけを取り除きます。
func (m *Manager) Remove(slot input.SlotID) error {
	if !slot.Valid() || m.players[slot.Ordinal()] == nil {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, slot)
	}
	m.players[slot.Ordinal()] = nil
	return nil
}

func (m *Manager) Len() int {
	n := 0
	for _, p := range m.players {
		if p != nil {
			n++
		}
	}
	return n
}

// Players は機体のコピーを Ordinal 順に返します。
func (m *Manager) Players() []Player {
	var out []Player
	for _, p := range m.players {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

func (m *Manager) Player(slot input.SlotID) (Player, error) {
	if !slot.Valid() || m.players[slot.Ordinal()] == nil {
		return Player{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, slot)
	}
	return *m.players[slot.Ordinal()], nil
}

// Tuning は現在の飛行定数です。
func (m *Manager) Tuning() Tuning {
	return m.tuning
}
