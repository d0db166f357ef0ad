package domain

import (
	"errors"
	"math"
)

const maxGamepadEntries = 32

var ErrInvalidGamepadPayload = errors.New("invalid gamepad payload")

// KeyPayload はキー押下/解放メッセージのペイロード
//
//	len   u8
//	code  [len]byte  - 物理キー識別子 (例: "KeyW", "ArrowLeft", "Comma")
type KeyPayload struct {
	Code string
}

func ParseKeyPayload(data []byte) (*KeyPayload, error) {
	code, _, err := readString(data)
	if err != nil {
		return nil, err
	}
	return &KeyPayload{Code: code}, nil
}

func (p *KeyPayload) Encode() []byte {
	return appendString(nil, p.Code)
}

// GamepadButtonState はゲームパッドボタン1つ分の生の状態です。
type GamepadButtonState struct {
	Pressed bool
	Value   float32
}

// GamepadPayload は1台分のゲームパッドスナップショット
//
//	index        u8
//	connected    u8
//	axisCount    u8
//	axes         [axisCount]f32
//	buttonCount  u8
//	buttons      [buttonCount]{pressed u8, value f32}
type GamepadPayload struct {
	Index     uint8
	Connected bool
	Axes      []float32
	Buttons   []GamepadButtonState
}

func ParseGamepadPayload(data []byte) (*GamepadPayload, error) {
	if len(data) < 3 {
		return nil, ErrInvalidGamepadPayload
	}
	p := &GamepadPayload{
		Index:     data[0],
		Connected: data[1] != 0,
	}
	axisCount := int(data[2])
	if axisCount > maxGamepadEntries {
		return nil, ErrInvalidGamepadPayload
	}
	off := 3
	if len(data) < off+axisCount*4+1 {
		return nil, ErrInvalidGamepadPayload
	}
	p.Axes = make([]float32, axisCount)
	for i := range axisCount {
		p.Axes[i] = math.Float32frombits(byteOrder.Uint32(data[off : off+4]))
		off += 4
	}
	buttonCount := int(data[off])
	off++
	if buttonCount > maxGamepadEntries || len(data) < off+buttonCount*5 {
		return nil, ErrInvalidGamepadPayload
	}
	p.Buttons = make([]GamepadButtonState, buttonCount)
	for i := range buttonCount {
		p.Buttons[i] = GamepadButtonState{
			Pressed: data[off] != 0,
			Value:   math.Float32frombits(byteOrder.Uint32(data[off+1 : off+5])),
		}
		off += 5
	}
	return p, nil
}

func (p *GamepadPayload) Encode() []byte {
	axes := p.Axes
	if len(axes) > maxGamepadEntries {
		axes = axes[:maxGamepadEntries]
	}
	buttons := p.Buttons
	if len(buttons) > maxGamepadEntries {
		buttons = buttons[:maxGamepadEntries]
	}
	buf := make([]byte, 0, 4+len(axes)*4+len(buttons)*5)
	connected := byte(0)
	if p.Connected {
		connected = 1
	}
	buf = append(buf, p.Index, connected, byte(len(axes)))
	for _, a := range axes {
		buf = byteOrder.AppendUint32(buf, math.Float32bits(a))
	}
	buf = append(buf, byte(len(buttons)))
	for _, b := range buttons {
		pressed := byte(0)
		if b.Pressed {
			pressed = 1
		}
		buf = append(buf, pressed)
		buf = byteOrder.AppendUint32(buf, math.Float32bits(b.Value))
	}
	return buf
}
