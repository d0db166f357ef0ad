package application

import (
	"fmt"
	"math"

	"shipjoy/server/application/catalog"
	"shipjoy/server/application/flight"
	"shipjoy/server/application/input"
	"shipjoy/server/application/lobby"
	"shipjoy/server/domain"
)

// VisualMode はプレイヤーの描画モードです。
type VisualMode uint8

const (
	ModeBrowsing VisualMode = iota + 1
	ModeClaimed
	ModeReady
	ModeFlying
)

func (m VisualMode) String() string {
	switch m {
	case ModeBrowsing:
		return "browsing"
	case ModeClaimed:
		return "claimed"
	case ModeReady:
		return "ready"
	case ModeFlying:
		return "flying"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

func modeFromLobby(s lobby.PlayerState) VisualMode {
	switch s {
	case lobby.Claimed:
		return ModeClaimed
	case lobby.Ready:
		return ModeReady
	default:
		return ModeBrowsing
	}
}

// lobbyMaxSpacing はロビーで並べる機体の最大間隔 (px) です。
const lobbyMaxSpacing = 220.0

// PlayerView はレンダラーに渡すプレイヤー1人分の状態です。描画に関する情報は持ちません。
type PlayerView struct {
	Slot           input.SlotID
	Label          string
	Mode           VisualMode
	ShipID         int
	Hue            float64
	Position       domain.Vec2
	HeadingDegrees float64
	Power          float64
	Health         float64
	Score          int
}

// Frame は1ティック分の描画用ビューモデルです。
type Frame struct {
	Phase            Phase
	CountdownActive  bool
	CountdownSeconds int
	Arena            domain.Vec2
	MaxPower         float64
	MaxHealth        float64
	Players          []PlayerView
}

// Frame は現在の状態からビューモデルを作ります。
func (g *Game) Frame() Frame {
	f := Frame{
		Phase:     g.phase,
		Arena:     g.arena,
		MaxPower:  g.cfg.Flight.MaxPower,
		MaxHealth: g.cfg.Flight.MaxHealth,
	}

	switch g.phase {
	case PhaseLobby:
		f.CountdownActive = g.lobby.CountdownActive()
		f.CountdownSeconds = g.lobby.CountdownSeconds()
		f.Players = g.lobbyViews(g.lobby.Players())
	case PhaseFlight:
		for _, p := range g.flight.Players() {
			f.Players = append(f.Players, g.flightView(p))
		}
	}
	return f
}

// lobbyViews は参加者を画面中央の横一列に並べます。
func (g *Game) lobbyViews(players []lobby.Player) []PlayerView {
	n := len(players)
	if n == 0 {
		return nil
	}
	spacing := math.Min(lobbyMaxSpacing, g.arena.X/float64(n+1))
	startX := (g.arena.X - spacing*float64(n-1)) / 2

	views := make([]PlayerView, 0, n)
	for i, p := range players {
		views = append(views, PlayerView{
			Slot:     p.Slot,
			Label:    p.Label,
			Mode:     modeFromLobby(p.State),
			ShipID:   int(p.ShipID),
			Hue:      g.hue(int(p.ShipID)),
			Position: domain.Vec2{X: startX + spacing*float64(i), Y: g.arena.Y / 2},
		})
	}
	return views
}

func (g *Game) flightView(p flight.Player) PlayerView {
	return PlayerView{
		Slot:           p.Slot,
		Label:          p.Label,
		Mode:           ModeFlying,
		ShipID:         int(p.ShipID),
		Hue:            g.hue(int(p.ShipID)),
		Position:       p.Position,
		HeadingDegrees: p.Heading * 180 / math.Pi,
		Power:          p.Power,
		Health:         p.Health,
		Score:          p.Score,
	}
}

func (g *Game) hue(id int) float64 {
	ship, err := g.catalog.Lookup(catalog.ShipID(id))
	if err != nil {
		return 0
	}
	return ship.Hue
}

// Payload はフレームを配信用のペイロードに変換します。
func (f Frame) Payload() *domain.FramePayload {
	payload := &domain.FramePayload{
		Phase:            uint8(f.Phase),
		CountdownActive:  f.CountdownActive,
		CountdownSeconds: uint8(min(max(f.CountdownSeconds, 0), math.MaxUint8)),
		Arena:            f.Arena.ToPosition2D(),
		Players:          make([]domain.PlayerFrame, 0, len(f.Players)),
	}
	for _, p := range f.Players {
		payload.Players = append(payload.Players, domain.PlayerFrame{
			Slot:     uint8(p.Slot.Ordinal()),
			Mode:     uint8(p.Mode),
			ShipID:   uint16(p.ShipID),
			Hue:      float32(p.Hue),
			Position: p.Position.ToPosition2D(),
			Heading:  float32(p.HeadingDegrees),
			Power:    float32(p.Power),
			Health:   float32(p.Health),
			Score:    int32(p.Score),
			Label:    p.Label,
		})
	}
	return payload
}
