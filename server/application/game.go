package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"shipjoy/server/application/catalog"
	"shipjoy/server/application/flight"
	"shipjoy/server/application/input"
	"shipjoy/server/application/lobby"
	"shipjoy/server/domain"
	"shipjoy/utils"
)

var ErrInvalidArena = errors.New("invalid arena size")

// Phase はゲーム全体の画面です。
type Phase uint8

const (
	PhaseLobby Phase = iota + 1
	PhaseFlight
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseFlight:
		return "flight"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// Game はコントローラー、ロビー、飛行を1ティックずつ進めるオーケストレーターです。
// 同時に1つのフェーズだけが有効です。Game はゴルーチンセーフではありません。
type Game struct {
	cfg      *Config
	catalog  *catalog.Catalog
	registry *input.Registry
	lobby    *lobby.Manager
	flight   *flight.Manager
	phase    Phase
	arena    domain.Vec2
	rng      *rand.Rand

	lobbyEvents []lobby.Event
}

type GameOption func(*Game)

// WithGameRand は機体の割り当てと出現位置に使う乱数源を指定します。
func WithGameRand(rng *rand.Rand) GameOption {
	return func(g *Game) {
		g.rng = rng
	}
}

func NewGame(cfg *Config, opts ...GameOption) (*Game, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	g := &Game{
		cfg:      cfg,
		catalog:  c,
		registry: input.NewRegistry(),
		phase:    PhaseLobby,
		arena:    domain.Vec2{X: cfg.Arena.Width, Y: cfg.Arena.Height},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	g.lobby = lobby.NewManager(c, g.registry,
		lobby.WithRand(g.rng),
		lobby.WithCountdown(cfg.Lobby.CountdownSeconds),
	)
	g.lobby.Subscribe(func(ev lobby.Event) {
		g.lobbyEvents = append(g.lobbyEvents, ev)
	})
	return g, nil
}

// Registry は生の入力を流し込むためのコントローラーレジストリを返します。
func (g *Game) Registry() *input.Registry {
	return g.registry
}

func (g *Game) Phase() Phase {
	return g.phase
}

func (g *Game) Catalog() *catalog.Catalog {
	return g.catalog
}

func (g *Game) Arena() domain.Vec2 {
	return g.arena
}

// SetArena はアリーナの大きさ (ビューポートのサイズ) を更新します。
func (g *Game) SetArena(width, height float64) error {
	if err := validateArena(width, height); err != nil {
		return err
	}
	g.arena = domain.Vec2{X: width, Y: height}
	return nil
}

func validateArena(width, height float64) error {
	if !utils.IsFinite(width) || !utils.IsFinite(height) || width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %vx%v", ErrInvalidArena, width, height)
	}
	return nil
}

func (g *Game) Lobby() *lobby.Manager {
	return g.lobby
}

// Flight は飛行中のみ non-nil です。
func (g *Game) Flight() *flight.Manager {
	return g.flight
}

// Step はゲームを dt 秒進めます。
//
//	1. コントローラーの接続/切断を確定する
//	2. 現在のフェーズを更新する
//	3. フェーズ遷移を適用する
func (g *Game) Step(ctx context.Context, dt float64) {
	if !utils.IsFinite(dt) || dt < 0 {
		dt = 0
	}

	events := g.registry.PollFrame()
	for _, ev := range events {
		slog.InfoContext(ctx, "controller event", "event", ev.Kind, "slot", ev.Slot, "phase", g.phase)
	}

	switch g.phase {
	case PhaseLobby:
		launches, launched := g.lobby.Update(dt, events)
		g.flushLobbyEvents(ctx)
		if launched {
			g.startFlight(ctx, launches)
		}
	case PhaseFlight:
		for _, ev := range events {
			if ev.Kind != input.EventRemoved {
				continue
			}
			if err := g.flight.Remove(ev.Slot); err != nil && !errors.Is(err, flight.ErrPlayerNotFound) {
				slog.WarnContext(ctx, "failed to remove pilot", "slot", ev.Slot, "error", err)
			}
		}
		if g.flight.Len() == 0 {
			g.returnToLobby(ctx, "all pilots disconnected")
			return
		}
		if g.flight.Update(dt, g.arena, g.registry) {
			g.returnToLobby(ctx, "menu pressed")
		}
	}
}

func (g *Game) startFlight(ctx context.Context, launches []lobby.Launch) {
	g.flight = flight.NewManager(launches, g.arena, g.cfg.Flight, g.rng)
	g.phase = PhaseFlight
	slog.InfoContext(ctx, "flight started", "pilots", len(launches))
}

func (g *Game) returnToLobby(ctx context.Context, reason string) {
	g.flight = nil
	g.phase = PhaseLobby
	g.lobby.Reset(g.registry.Active())
	g.flushLobbyEvents(ctx)
	slog.InfoContext(ctx, "returned to lobby", "reason", reason)
}

func (g *Game) flushLobbyEvents(ctx context.Context) {
	for _, ev := range g.lobbyEvents {
		switch ev.Kind {
		case lobby.EventCountdownStarted, lobby.EventCountdownCancelled, lobby.EventLaunched:
			slog.InfoContext(ctx, "lobby event", "event", ev.Kind, "remaining", ev.Remaining, "launches", len(ev.Launches))
		case lobby.EventBumped:
			slog.InfoContext(ctx, "lobby event", "event", ev.Kind, "slot", ev.Slot, "by", ev.By, "ship", ev.ShipID, "new_ship", ev.NewShipID)
		default:
			slog.DebugContext(ctx, "lobby event", "event", ev.Kind, "slot", ev.Slot, "from", ev.From, "to", ev.To, "ship", ev.ShipID, "new_ship", ev.NewShipID)
		}
	}
	g.lobbyEvents = g.lobbyEvents[:0]
}
