package input

import (
	"errors"
	"fmt"
)

var (
	// ErrNoControllerForSlot はスロットが非アクティブ (切断済み、離脱済み) の場合に返されます。
	// 呼び出し側は no-op として扱います。
	ErrNoControllerForSlot = errors.New("no active controller for slot")
	// ErrUnknownSlot は存在しないスロット識別子が渡された場合に返されます。
	ErrUnknownSlot = errors.New("unknown controller slot")
	// ErrUnknownKeyCode はどのキーボードスロットにも割り当てられていないキーの場合に返されます。
	ErrUnknownKeyCode = errors.New("unknown key code")
)

const (
	MaxKeyboards = 2
	MaxGamepads  = 4
	MaxSlots     = MaxKeyboards + MaxGamepads
)

// SourceKind は入力ソースの種別です。
type SourceKind uint8

const (
	SourceKeyboard SourceKind = iota + 1
	SourceGamepad
)

func (k SourceKind) String() string {
	switch k {
	case SourceKeyboard:
		return "keyboard"
	case SourceGamepad:
		return "gamepad"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// SlotID は論理スロットの識別子です。同じ物理ソースは再接続しても同じ SlotID になります。
type SlotID struct {
	Kind  SourceKind
	Index int
}

var (
	KeyboardLeft  = SlotID{Kind: SourceKeyboard, Index: 0}
	KeyboardRight = SlotID{Kind: SourceKeyboard, Index: 1}
)

func Gamepad(index int) SlotID {
	return SlotID{Kind: SourceGamepad, Index: index}
}

// SlotFromOrdinal は Ordinal の逆変換です。
func SlotFromOrdinal(n int) (SlotID, bool) {
	switch {
	case n >= 0 && n < MaxKeyboards:
		return SlotID{Kind: SourceKeyboard, Index: n}, true
	case n >= MaxKeyboards && n < MaxSlots:
		return Gamepad(n - MaxKeyboards), true
	default:
		return SlotID{}, false
	}
}

func (s SlotID) Valid() bool {
	switch s.Kind {
	case SourceKeyboard:
		return s.Index >= 0 && s.Index < MaxKeyboards
	case SourceGamepad:
		return s.Index >= 0 && s.Index < MaxGamepads
	default:
		return false
	}
}

// Ordinal はスロットの安定した処理順です。キーボード左右が 0,1、ゲームパッドが 2..5 です。
func (s SlotID) Ordinal() int {
	if s.Kind == SourceGamepad {
		return MaxKeyboards + s.Index
	}
	return s.Index
}

// Label はプレイヤーに表示する名前です。
func (s SlotID) Label() string {
	switch s.Kind {
	case SourceKeyboard:
		if s.Index == 0 {
			return "Keyboard Left"
		}
		return "Keyboard Right"
	case SourceGamepad:
		return fmt.Sprintf("Gamepad %d", s.Index+1)
	default:
		return "Unknown"
	}
}

func (s SlotID) String() string {
	return fmt.Sprintf("%s:%d", s.Kind, s.Index)
}

// Buttons は論理ボタンのビットマスクです。
type Buttons uint8

const (
	ButtonLeft Buttons = 1 << iota
	ButtonRight
	ButtonUp
	ButtonDown
	ButtonPrimary
	ButtonSecondary
	ButtonMenu

	directionButtons = ButtonLeft | ButtonRight | ButtonUp | ButtonDown
)

func (b Buttons) Has(x Buttons) bool { return b&x != 0 }

func (b Buttons) String() string {
	if b == 0 {
		return "none"
	}
	names := []struct {
		bit  Buttons
		name string
	}{
		{ButtonLeft, "left"},
		{ButtonRight, "right"},
		{ButtonUp, "up"},
		{ButtonDown, "down"},
		{ButtonPrimary, "primary"},
		{ButtonSecondary, "secondary"},
		{ButtonMenu, "menu"},
	}
	out := ""
	for _, n := range names {
		if !b.Has(n.bit) {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += n.name
	}
	return out
}
