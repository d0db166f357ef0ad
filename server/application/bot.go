package application

import (
	"shipjoy/server/application/input"
	"shipjoy/server/domain"
)

// 標準レイアウトのゲームパッドの軸とボタンの数
const (
	standardAxes    = 4
	standardButtons = 17
)

// BotAction はボットの1ティック分の入力です。
type BotAction struct {
	Stick     domain.Vec2 // 左スティック。上が -Y
	Primary   bool
	Secondary bool
}

// Snapshot は標準レイアウトのゲームパッドとしての状態を返します。
func (a BotAction) Snapshot() input.GamepadSnapshot {
	s := input.GamepadSnapshot{
		Connected: true,
		Axes:      make([]float64, standardAxes),
		Buttons:   make([]input.ButtonSample, standardButtons),
	}
	stick := a.Stick.ClampUnit()
	s.Axes[input.PadAxisLeftX] = stick.X
	s.Axes[input.PadAxisLeftY] = stick.Y
	if a.Primary {
		s.Buttons[input.PadButtonPrimary] = input.ButtonSample{Pressed: true, Value: 1}
	}
	if a.Secondary {
		s.Buttons[input.PadButtonSecondary] = input.ButtonSample{Pressed: true, Value: 1}
	}
	return s
}

// BotController はボットの意思決定インターフェースです。
// self はフレーム内の自分で、まだ参加していなければ nil です。
type BotController interface {
	Decide(self *domain.PlayerFrame, frame *domain.FramePayload) BotAction
}

// FindPlayer はフレームからスロットのプレイヤーを探します。
func FindPlayer(frame *domain.FramePayload, slot input.SlotID) *domain.PlayerFrame {
	if frame == nil || !slot.Valid() {
		return nil
	}
	for i := range frame.Players {
		if int(frame.Players[i].Slot) == slot.Ordinal() {
			return &frame.Players[i]
		}
	}
	return nil
}
