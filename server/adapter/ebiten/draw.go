package adapterebiten

import (
	"fmt"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"shipjoy/server/application"
)

const (
	shipRadius   = 18
	meterWidth   = 40
	meterHeight  = 4
	headingScale = 1.6
)

var (
	backgroundColor = color.RGBA{R: 8, G: 10, B: 24, A: 255}
	powerColor      = color.RGBA{R: 80, G: 180, B: 255, A: 255}
	healthColor     = color.RGBA{R: 90, G: 230, B: 120, A: 255}
	meterBackColor  = color.RGBA{R: 255, G: 255, B: 255, A: 40}
	readyRingColor  = color.RGBA{R: 255, G: 255, B: 255, A: 220}
)

func drawFrame(screen *ebiten.Image, frame application.Frame) {
	screen.Fill(backgroundColor)

	for _, p := range frame.Players {
		drawPlayer(screen, frame, p)
	}

	switch frame.Phase {
	case application.PhaseLobby:
		ebitenutil.DebugPrintAt(screen, "press a button to join / left-right: browse / primary: claim, ready / secondary: back", 16, 16)
		if frame.CountdownActive {
			msg := fmt.Sprintf("launch in %d", frame.CountdownSeconds)
			ebitenutil.DebugPrintAt(screen, msg, int(frame.Arena.X/2)-len(msg)*3, int(frame.Arena.Y/4))
		}
	case application.PhaseFlight:
		ebitenutil.DebugPrintAt(screen, "menu: back to lobby", 16, 16)
	}
}

func drawPlayer(screen *ebiten.Image, frame application.Frame, p application.PlayerView) {
	x, y := float32(p.Position.X), float32(p.Position.Y)
	hull := hueColor(p.Hue, 0.75, 0.55, 255)

	switch p.Mode {
	case application.ModeBrowsing:
		hull = hueColor(p.Hue, 0.35, 0.45, 160)
	case application.ModeReady:
		vector.StrokeCircle(screen, x, y, shipRadius+6, 2, readyRingColor, true)
	}
	vector.DrawFilledCircle(screen, x, y, shipRadius, hull, true)

	// 機首の向き。0 が上、時計回り
	rad := p.HeadingDegrees * math.Pi / 180
	nx := x + float32(math.Sin(rad))*shipRadius*headingScale
	ny := y - float32(math.Cos(rad))*shipRadius*headingScale
	vector.StrokeLine(screen, x, y, nx, ny, 3, readyRingColor, true)

	labelY := int(y) + shipRadius + 6
	ebitenutil.DebugPrintAt(screen, p.Label, int(x)-len(p.Label)*3, labelY)

	switch p.Mode {
	case application.ModeFlying:
		drawMeter(screen, x, y-shipRadius-14, p.Power/frame.MaxPower, powerColor)
		drawMeter(screen, x, y-shipRadius-8, p.Health/frame.MaxHealth, healthColor)
	default:
		ebitenutil.DebugPrintAt(screen, p.Mode.String(), int(x)-len(p.Mode.String())*3, labelY+14)
	}
}

func drawMeter(screen *ebiten.Image, cx, y float32, ratio float64, clr color.Color) {
	if math.IsNaN(ratio) {
		ratio = 0
	}
	ratio = math.Max(0, math.Min(1, ratio))
	x := cx - meterWidth/2
	vector.DrawFilledRect(screen, x, y, meterWidth, meterHeight, meterBackColor, false)
	vector.DrawFilledRect(screen, x, y, meterWidth*float32(ratio), meterHeight, clr, false)
}

// hueColor は HSL から色を作ります。h は度です。
func hueColor(h, s, l float64, alpha uint8) color.RGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return color.RGBA{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: alpha,
	}
}
