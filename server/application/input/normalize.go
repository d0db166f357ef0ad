package input

import (
	"math"

	"shipjoy/server/domain"
	"shipjoy/utils"
)

const (
	// Deadzone 未満の軸入力は 0 として扱います。
	Deadzone = 0.1
	// DirectionThreshold 以上の成分を離散方向として扱います。
	DirectionThreshold = 0.5
)

// 標準ゲームパッドレイアウトのインデックス
const (
	PadButtonPrimary   = 0
	PadButtonSecondary = 1
	PadButtonMenu      = 9
	PadButtonDPadUp    = 12
	PadButtonDPadDown  = 13
	PadButtonDPadLeft  = 14
	PadButtonDPadRight = 15

	PadAxisLeftX = 0
	PadAxisLeftY = 1
)

// ButtonSample はゲームパッドボタン1つ分の生の値です。
type ButtonSample struct {
	Pressed bool
	Value   float64
}

// GamepadSnapshot はゲームパッド1台の1ティック分の生の状態です。
type GamepadSnapshot struct {
	Connected bool
	Axes      []float64
	Buttons   []ButtonSample
}

func (s GamepadSnapshot) button(i int) bool {
	if i < 0 || i >= len(s.Buttons) {
		return false
	}
	b := s.Buttons[i]
	return b.Pressed || (utils.IsFinite(b.Value) && b.Value >= DirectionThreshold)
}

func (s GamepadSnapshot) axis(i int) float64 {
	if i < 0 || i >= len(s.Axes) {
		return 0
	}
	return ApplyDeadzone(s.Axes[i])
}

// ApplyDeadzone は NaN/Inf と Deadzone 未満を 0 にし、[-1, 1] にクランプします。
func ApplyDeadzone(v float64) float64 {
	if !utils.IsFinite(v) || math.Abs(v) < Deadzone {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

// DigitalVector は方向ボタンを -1/0/+1 の軸に変換し、単位円にクランプします。
// 画面座標なので上が -Y です。
func DigitalVector(held Buttons) domain.Vec2 {
	var v domain.Vec2
	if held.Has(ButtonLeft) {
		v.X--
	}
	if held.Has(ButtonRight) {
		v.X++
	}
	if held.Has(ButtonUp) {
		v.Y--
	}
	if held.Has(ButtonDown) {
		v.Y++
	}
	return v.ClampUnit()
}

// GamepadVector はスティックまたは D-pad から方向ベクトルを求めます。
// D-pad がひとつでも押されていればスティックは無視されます。
func GamepadVector(s GamepadSnapshot) domain.Vec2 {
	var dpad Buttons
	if s.button(PadButtonDPadLeft) {
		dpad |= ButtonLeft
	}
	if s.button(PadButtonDPadRight) {
		dpad |= ButtonRight
	}
	if s.button(PadButtonDPadUp) {
		dpad |= ButtonUp
	}
	if s.button(PadButtonDPadDown) {
		dpad |= ButtonDown
	}
	if dpad != 0 {
		return DigitalVector(dpad)
	}
	v := domain.Vec2{X: s.axis(PadAxisLeftX), Y: s.axis(PadAxisLeftY)}
	return v.ClampUnit()
}

// Directions はベクトルから離散方向フラグを求めます。
func Directions(v domain.Vec2) Buttons {
	var b Buttons
	if v.X <= -DirectionThreshold {
		b |= ButtonLeft
	}
	if v.X >= DirectionThreshold {
		b |= ButtonRight
	}
	if v.Y <= -DirectionThreshold {
		b |= ButtonUp
	}
	if v.Y >= DirectionThreshold {
		b |= ButtonDown
	}
	return b
}

// NormalizeKeyboard はキーボードスロットの押下ボタンから方向ベクトルと論理ボタンを求めます。
func NormalizeKeyboard(raw Buttons) (domain.Vec2, Buttons) {
	v := DigitalVector(raw)
	return v, Directions(v) | (raw &^ directionButtons)
}

// NormalizeGamepad はゲームパッドのスナップショットから方向ベクトルと論理ボタンを求めます。
func NormalizeGamepad(s GamepadSnapshot) (domain.Vec2, Buttons) {
	v := GamepadVector(s)
	held := Directions(v)
	if s.button(PadButtonPrimary) {
		held |= ButtonPrimary
	}
	if s.button(PadButtonSecondary) {
		held |= ButtonSecondary
	}
	if s.button(PadButtonMenu) {
		held |= ButtonMenu
	}
	return v, held
}

// gamepadEngaged はアクティベーション判定用に、Deadzone を超えた生のボタンと軸をビットで返します。
// ボタンは下位32ビット、軸は上位ビットに割り当てます。メニューボタンは含みません。
func gamepadEngaged(s GamepadSnapshot) uint64 {
	var mask uint64
	for i, b := range s.Buttons {
		if i >= 32 || i == PadButtonMenu {
			continue
		}
		if b.Pressed || (utils.IsFinite(b.Value) && b.Value > Deadzone) {
			mask |= 1 << uint(i)
		}
	}
	for i, a := range s.Axes {
		if i >= 32 {
			break
		}
		if ApplyDeadzone(a) != 0 {
			mask |= 1 << uint(32+i)
		}
	}
	return mask
}
