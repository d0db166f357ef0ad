package lobby

import (
	"fmt"

	"shipjoy/server/application/catalog"
	"shipjoy/server/application/input"
)

// PlayerState はロビー内のプレイヤー状態です。
type PlayerState uint8

const (
	Browsing PlayerState = iota + 1
	Claimed
	Ready
)

func (s PlayerState) String() string {
	switch s {
	case Browsing:
		return "browsing"
	case Claimed:
		return "claimed"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Holds は機体を占有している状態かを返します。
func (s PlayerState) Holds() bool {
	return s == Claimed || s == Ready
}

// Player はロビー参加者1人分の状態です。Slot はコントローラーの参照のみで、所有はしません。
type Player struct {
	Slot   input.SlotID
	Label  string
	State  PlayerState
	ShipID catalog.ShipID
	// ClaimedAt は機体を確保したティックです。同一ティックの競合判定に使います。
	ClaimedAt uint64

	joinedAt uint64
}

// Launch はカウントダウン完了時に Ready だったプレイヤーです。
type Launch struct {
	Slot   input.SlotID
	Label  string
	ShipID catalog.ShipID
}
