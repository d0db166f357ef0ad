package adapterebiten

import (
	"context"
	"log/slog"
	"slices"

	"github.com/hajimehoshi/ebiten/v2"

	"shipjoy/server/application/input"
)

// ebitenKeys はコンソールと同じキーコードへの対応表です。
var ebitenKeys = map[input.KeyCode]ebiten.Key{
	input.KeyW:      ebiten.KeyW,
	input.KeyA:      ebiten.KeyA,
	input.KeyS:      ebiten.KeyS,
	input.KeyD:      ebiten.KeyD,
	input.KeyC:      ebiten.KeyC,
	input.KeyV:      ebiten.KeyV,
	input.KeyQ:      ebiten.KeyQ,
	input.KeyUp:     ebiten.KeyArrowUp,
	input.KeyDown:   ebiten.KeyArrowDown,
	input.KeyLeft:   ebiten.KeyArrowLeft,
	input.KeyRight:  ebiten.KeyArrowRight,
	input.KeyComma:  ebiten.KeyComma,
	input.KeyPeriod: ebiten.KeyPeriod,
	input.KeySlash:  ebiten.KeySlash,
	input.KeyEscape: ebiten.KeyEscape,
}

// keyboardPoller はキーの押下レベルを毎ティック読み、変化だけをレジストリに送ります。
type keyboardPoller struct {
	down map[input.KeyCode]bool
}

func newKeyboardPoller() *keyboardPoller {
	return &keyboardPoller{down: make(map[input.KeyCode]bool, len(ebitenKeys))}
}

func (p *keyboardPoller) poll(ctx context.Context, registry *input.Registry) {
	for code, key := range ebitenKeys {
		pressed := ebiten.IsKeyPressed(key)
		if pressed == p.down[code] {
			continue
		}
		p.down[code] = pressed

		var err error
		if pressed {
			err = registry.KeyDown(code)
		} else {
			err = registry.KeyUp(code)
		}
		if err != nil {
			slog.WarnContext(ctx, "failed to forward key", "code", code, "err", err)
		}
	}
}

// gamepadPoller は ebiten のゲームパッドIDを 0..MaxGamepads-1 のインデックスに割り当てます。
// 切断されたパッドのインデックスは次に接続されたパッドが再利用します。
type gamepadPoller struct {
	ids      []ebiten.GamepadID
	assigned map[ebiten.GamepadID]int
}

func newGamepadPoller() *gamepadPoller {
	return &gamepadPoller{assigned: make(map[ebiten.GamepadID]int, input.MaxGamepads)}
}

func (p *gamepadPoller) poll(ctx context.Context, registry *input.Registry) {
	p.ids = ebiten.AppendGamepadIDs(p.ids[:0])

	for id, index := range p.assigned {
		if slices.Contains(p.ids, id) {
			continue
		}
		delete(p.assigned, id)
		if err := registry.SetGamepad(index, input.GamepadSnapshot{}); err != nil {
			slog.WarnContext(ctx, "failed to disconnect gamepad", "index", index, "err", err)
		}
		slog.InfoContext(ctx, "gamepad disconnected", "index", index)
	}

	for _, id := range p.ids {
		index, ok := p.assigned[id]
		if !ok {
			index, ok = p.freeIndex()
			if !ok {
				continue
			}
			p.assigned[id] = index
			slog.InfoContext(ctx, "gamepad connected", "index", index, "name", ebiten.GamepadName(id))
		}
		if err := registry.SetGamepad(index, snapshot(id)); err != nil {
			slog.WarnContext(ctx, "failed to forward gamepad", "index", index, "err", err)
		}
	}
}

func (p *gamepadPoller) freeIndex() (int, bool) {
	for i := range input.MaxGamepads {
		used := false
		for _, index := range p.assigned {
			if index == i {
				used = true
				break
			}
		}
		if !used {
			return i, true
		}
	}
	return 0, false
}

// snapshot はゲームパッドの状態を W3C 標準レイアウト順で読み取ります。
// 標準レイアウトが使えないパッドは生の並びをそのまま使います。
func snapshot(id ebiten.GamepadID) input.GamepadSnapshot {
	s := input.GamepadSnapshot{Connected: true}

	if ebiten.IsStandardGamepadLayoutAvailable(id) {
		for a := ebiten.StandardGamepadAxis(0); a <= ebiten.StandardGamepadAxisMax; a++ {
			s.Axes = append(s.Axes, ebiten.StandardGamepadAxisValue(id, a))
		}
		for b := ebiten.StandardGamepadButton(0); b <= ebiten.StandardGamepadButtonMax; b++ {
			s.Buttons = append(s.Buttons, input.ButtonSample{
				Pressed: ebiten.IsStandardGamepadButtonPressed(id, b),
				Value:   ebiten.StandardGamepadButtonValue(id, b),
			})
		}
		return s
	}

	for a := range ebiten.GamepadAxisCount(id) {
		s.Axes = append(s.Axes, ebiten.GamepadAxisValue(id, ebiten.GamepadAxisType(a)))
	}
	for b := range ebiten.GamepadButtonCount(id) {
		pressed := ebiten.IsGamepadButtonPressed(id, ebiten.GamepadButton(b))
		value := 0.0
		if pressed {
			value = 1
		}
		s.Buttons = append(s.Buttons, input.ButtonSample{Pressed: pressed, Value: value})
	}
	return s
}
