package domain

import (
	"errors"
	"math"
)

var ErrInvalidFramePayload = errors.New("invalid frame payload")

const (
	frameHeaderSize = 12
	playerFrameSize = 28 // label を除く固定長部分
)

// FramePayload はコンソールが描画する1フレーム分の状態です。
//
//	phase             u8
//	countdownActive   u8
//	countdownSeconds  u8
//	playerCount       u8
//	arena             Position2D (width, height)
//	players           [playerCount]PlayerFrame
type FramePayload struct {
	Phase            uint8
	CountdownActive  bool
	CountdownSeconds uint8
	Arena            Position2D
	Players          []PlayerFrame
}

// PlayerFrame はプレイヤー1人分の描画状態です。
//
//	slot      u8
//	mode      u8
//	shipID    u16
//	hue       f32
//	position  Position2D
//	heading   f32  - 度
//	power     f32
//	health    f32
//	score     i32
//	label     u8 len + bytes
type PlayerFrame struct {
	Slot     uint8
	Mode     uint8
	ShipID   uint16
	Hue      float32
	Position Position2D
	Heading  float32
	Power    float32
	Health   float32
	Score    int32
	Label    string
}

func (f *FramePayload) Encode() []byte {
	players := f.Players
	if len(players) > 255 {
		players = players[:255]
	}
	buf := make([]byte, frameHeaderSize, frameHeaderSize+len(players)*(playerFrameSize+16))
	buf[0] = f.Phase
	if f.CountdownActive {
		buf[1] = 1
	}
	buf[2] = f.CountdownSeconds
	buf[3] = byte(len(players))
	f.Arena.put(buf[4:12])
	for i := range players {
		buf = players[i].appendTo(buf)
	}
	return buf
}

func (p *PlayerFrame) appendTo(buf []byte) []byte {
	buf = append(buf, p.Slot, p.Mode)
	buf = byteOrder.AppendUint16(buf, p.ShipID)
	buf = byteOrder.AppendUint32(buf, math.Float32bits(p.Hue))
	buf = append(buf, p.Position.Encode()...)
	buf = byteOrder.AppendUint32(buf, math.Float32bits(p.Heading))
	buf = byteOrder.AppendUint32(buf, math.Float32bits(p.Power))
	buf = byteOrder.AppendUint32(buf, math.Float32bits(p.Health))
	buf = byteOrder.AppendUint32(buf, uint32(p.Score))
	return appendString(buf, p.Label)
}

func ParseFramePayload(data []byte) (*FramePayload, error) {
	if len(data) < frameHeaderSize {
		return nil, ErrInvalidFramePayload
	}
	arena, err := ParsePosition2D(data[4:12])
	if err != nil {
		return nil, ErrInvalidFramePayload
	}
	f := &FramePayload{
		Phase:            data[0],
		CountdownActive:  data[1] != 0,
		CountdownSeconds: data[2],
		Arena:            *arena,
	}
	count := int(data[3])
	f.Players = make([]PlayerFrame, 0, count)
	off := frameHeaderSize
	for range count {
		if len(data) < off+playerFrameSize {
			return nil, ErrInvalidFramePayload
		}
		b := data[off:]
		pos, _ := ParsePosition2D(b[8:16])
		p := PlayerFrame{
			Slot:     b[0],
			Mode:     b[1],
			ShipID:   byteOrder.Uint16(b[2:4]),
			Hue:      math.Float32frombits(byteOrder.Uint32(b[4:8])),
			Position: *pos,
			Heading:  math.Float32frombits(byteOrder.Uint32(b[16:20])),
			Power:    math.Float32frombits(byteOrder.Uint32(b[20:24])),
			Health:   math.Float32frombits(byteOrder.Uint32(b[24:28])),
		}
		off += playerFrameSize
		if len(data) < off+4 {
			return nil, ErrInvalidFramePayload
		}
		p.Score = int32(byteOrder.Uint32(data[off : off+4]))
		off += 4
		label, n, err := readString(data[off:])
		if err != nil {
			return nil, ErrInvalidFramePayload
		}
		p.Label = label
		off += n
		f.Players = append(f.Players, p)
	}
	return f, nil
}
