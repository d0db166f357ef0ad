package adapterebiten

import (
	"context"
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"

	"shipjoy/server/application"
)

// Game はデスクトップ用のフロントエンドです。ebiten の入力を生の入力源としてレジストリに流し、
// 毎ティックのビューモデルを描画します。
type Game struct {
	ctx      context.Context
	game     *application.Game
	keyboard *keyboardPoller
	gamepads *gamepadPoller
	frame    application.Frame
}

var _ ebiten.Game = (*Game)(nil)

func NewGame(ctx context.Context, game *application.Game) *Game {
	return &Game{
		ctx:      ctx,
		game:     game,
		keyboard: newKeyboardPoller(),
		gamepads: newGamepadPoller(),
		frame:    game.Frame(),
	}
}

func (g *Game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}

	registry := g.game.Registry()
	g.keyboard.poll(g.ctx, registry)
	g.gamepads.poll(g.ctx, registry)

	g.game.Step(g.ctx, 1/float64(ebiten.TPS()))
	g.frame = g.game.Frame()
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	drawFrame(screen, g.frame)
}

// Layout はウィンドウの大きさをそのままアリーナにします。
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if arena := g.game.Arena(); int(arena.X) != outsideWidth || int(arena.Y) != outsideHeight {
		if err := g.game.SetArena(float64(outsideWidth), float64(outsideHeight)); err != nil {
			slog.DebugContext(g.ctx, "ignored layout size", "width", outsideWidth, "height", outsideHeight, "err", err)
		}
	}
	return outsideWidth, outsideHeight
}
