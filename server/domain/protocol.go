package domain

import (
	"encoding/binary"
	"errors"
	"time"
)

// バイトオーダー: リトルエンディアン
var byteOrder = binary.LittleEndian

const (
	HeaderSize        = 25
	PayloadHeaderSize = 2
	ProtocolVersion   = 1
)

// Header はメッセージヘッダー (25バイト)
//
//	version    u8      (1)
//	sessionID  [16]byte (16)
//	seq        u16     (2)
//	length     u16     (2)  - ペイロード長
//	timestamp  u32     (4)
type Header struct {
	Version   uint8
	SessionID [16]byte
	Seq       uint16
	Length    uint16
	Timestamp uint32
}

// DataType はメッセージの種別
type DataType uint8

const (
	DataTypeInput   DataType = 1 // コンソール → サーバー: 生のキー/ゲームパッド入力
	DataTypeFrame   DataType = 2 // サーバー → コンソール: 描画用フレーム
	DataTypeControl DataType = 4
)

// InputSubType はinputメッセージのサブタイプ
type InputSubType uint8

const (
	InputSubTypeKeyDown InputSubType = 1
	InputSubTypeKeyUp   InputSubType = 2
	InputSubTypeGamepad InputSubType = 3
)

// ControlSubType はcontrolメッセージのサブタイプ
type ControlSubType uint8

const (
	ControlSubTypeJoin   ControlSubType = 1
	ControlSubTypeLeave  ControlSubType = 2
	ControlSubTypePing   ControlSubType = 4
	ControlSubTypePong   ControlSubType = 5
	ControlSubTypeError  ControlSubType = 6 // 入力を処理できなかったことの通知
	ControlSubTypeAssign ControlSubType = 7
	ControlSubTypeResize ControlSubType = 8 // ビューポートサイズ (アリーナ境界) の通知
)

// PayloadHeader はペイロードヘッダー (2バイト)
//
//	datatype  u8 (1)
//	subtype   u8 (1)
type PayloadHeader struct {
	DataType DataType
	SubType  uint8
}

var (
	ErrInvalidHeaderSize  = errors.New("invalid header size")
	ErrInvalidPayloadSize = errors.New("invalid payload size")
)

// ParseHeader はバイト列からHeaderをパースする
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, ErrInvalidHeaderSize
	}

	var sessionID [16]byte
	copy(sessionID[:], data[1:17])

	return &Header{
		Version:   data[0],
		SessionID: sessionID,
		Seq:       byteOrder.Uint16(data[17:19]),
		Length:    byteOrder.Uint16(data[19:21]),
		Timestamp: byteOrder.Uint32(data[21:25]),
	}, nil
}

// Encode はHeaderをバイト列にエンコードする
func (h *Header) Encode() []byte {
	data := make([]byte, HeaderSize)
	data[0] = h.Version
	copy(data[1:17], h.SessionID[:])
	byteOrder.PutUint16(data[17:19], h.Seq)
	byteOrder.PutUint16(data[19:21], h.Length)
	byteOrder.PutUint32(data[21:25], h.Timestamp)
	return data
}

// ParsePayloadHeader はバイト列からPayloadHeaderをパースする
func ParsePayloadHeader(data []byte) (*PayloadHeader, error) {
	if len(data) < PayloadHeaderSize {
		return nil, ErrInvalidPayloadSize
	}

	return &PayloadHeader{
		DataType: DataType(data[0]),
		SubType:  data[1],
	}, nil
}

// Encode はPayloadHeaderをバイト列にエンコードする
func (p *PayloadHeader) Encode() []byte {
	data := make([]byte, PayloadHeaderSize)
	data[0] = byte(p.DataType)
	data[1] = p.SubType
	return data
}

// Envelope はパース済みのメッセージです。Payload は PayloadHeader 以降のバイト列を指します。
type Envelope struct {
	Header        *Header
	PayloadHeader *PayloadHeader
	Payload       []byte
}

// ParseEnvelope はヘッダー、ペイロードヘッダー、ペイロードに分解します。
func ParseEnvelope(data []byte) (*Envelope, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	payloadHeader, err := ParsePayloadHeader(data[HeaderSize:])
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Header:        header,
		PayloadHeader: payloadHeader,
		Payload:       data[HeaderSize+PayloadHeaderSize:],
	}, nil
}

// EncodeMessage はヘッダーとペイロードをまとめてエンコードする
func EncodeMessage(sessionID SessionID, seq uint16, dataType DataType, subType uint8, payload []byte) []byte {
	header := Header{
		Version:   ProtocolVersion,
		SessionID: sessionID.Bytes(),
		Seq:       seq,
		Length:    uint16(PayloadHeaderSize + len(payload)),
		Timestamp: nowMillis(),
	}
	payloadHeader := PayloadHeader{
		DataType: dataType,
		SubType:  subType,
	}

	data := make([]byte, HeaderSize+PayloadHeaderSize+len(payload))
	copy(data[:HeaderSize], header.Encode())
	copy(data[HeaderSize:], payloadHeader.Encode())
	copy(data[HeaderSize+PayloadHeaderSize:], payload)
	return data
}

// EncodeAssignMessage はセッションID通知メッセージをエンコードする
// クライアントに自分のセッションIDを通知するために使用
func EncodeAssignMessage(sessionID SessionID) []byte {
	return EncodeMessage(sessionID, 0, DataTypeControl, uint8(ControlSubTypeAssign), nil)
}

// EncodeLeaveMessage はルーム離脱メッセージをエンコードする
// 異常切断時にclose()からRoom離脱を通知するために使用
func EncodeLeaveMessage(sessionID SessionID) []byte {
	return EncodeMessage(sessionID, 0, DataTypeControl, uint8(ControlSubTypeLeave), nil)
}

// EncodePingMessage はPingメッセージをエンコードする
// クライアントに死活確認のpingを送信するために使用
func EncodePingMessage(sessionID SessionID) []byte {
	return EncodeMessage(sessionID, 0, DataTypeControl, uint8(ControlSubTypePing), nil)
}

// EncodeErrorMessage はエラー通知メッセージをエンコードする
// ルームが処理できなかった入力の送り主に理由を返すために使用
func EncodeErrorMessage(sessionID SessionID, reason string) []byte {
	p := ErrorPayload{Reason: reason}
	return EncodeMessage(sessionID, 0, DataTypeControl, uint8(ControlSubTypeError), p.Encode())
}

// ErrorPayload はエラー通知のペイロード
//
//	len     u8
//	reason  [len]byte
type ErrorPayload struct {
	Reason string
}

func ParseErrorPayload(data []byte) (*ErrorPayload, error) {
	s, _, err := readString(data)
	if err != nil {
		return nil, err
	}
	return &ErrorPayload{Reason: s}, nil
}

func (p *ErrorPayload) Encode() []byte {
	return appendString(nil, p.Reason)
}

// JoinPayload はルーム参加メッセージのペイロード
//
//	len     u8
//	roomID  [len]byte  - 空ならデフォルトルーム
type JoinPayload struct {
	RoomID RoomID
}

var ErrInvalidJoinPayloadSize = errors.New("invalid join payload size")

func ParseJoinPayload(data []byte) (*JoinPayload, error) {
	if len(data) == 0 {
		return &JoinPayload{}, nil
	}
	s, _, err := readString(data)
	if err != nil {
		return nil, ErrInvalidJoinPayloadSize
	}
	return &JoinPayload{RoomID: RoomID(s)}, nil
}

func (p *JoinPayload) Encode() []byte {
	return appendString(nil, string(p.RoomID))
}

// ResizePayload はビューポートサイズ通知のペイロード (8バイト)
//
//	width   f32
//	height  f32
type ResizePayload struct {
	Width, Height float32
}

const ResizePayloadSize = 8

func ParseResizePayload(data []byte) (*ResizePayload, error) {
	p, err := ParsePosition2D(data)
	if err != nil {
		return nil, ErrInvalidPayloadSize
	}
	return &ResizePayload{Width: p.X, Height: p.Y}, nil
}

func (p *ResizePayload) Encode() []byte {
	pos := Position2D{X: p.Width, Y: p.Height}
	return pos.Encode()
}

func nowMillis() uint32 {
	return uint32(time.Now().UnixMilli() & 0xFFFFFFFF)
}

// readString は u8 長さプレフィックス付き文字列を読み取り、消費したバイト数を返す
func readString(data []byte) (string, int, error) {
	if len(data) < 1 {
		return "", 0, ErrInvalidPayloadSize
	}
	n := int(data[0])
	if len(data) < 1+n {
		return "", 0, ErrInvalidPayloadSize
	}
	return string(data[1 : 1+n]), 1 + n, nil
}

// appendString は u8 長さプレフィックス付きで文字列を追記する。255バイトを超える部分は切り捨てる
func appendString(buf []byte, s string) []byte {
	if len(s) > 255 {
		s = s[:255]
	}
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}
