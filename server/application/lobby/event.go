package lobby

import (
	"fmt"

	"shipjoy/server/application/catalog"
	"shipjoy/server/application/input"
)

type EventKind uint8

const (
	EventJoined EventKind = iota + 1
	EventLeft
	EventStateChanged
	EventShipChanged
	EventBumped
	EventCountdownStarted
	EventCountdownCancelled
	EventLaunched
)

func (k EventKind) String() string {
	switch k {
	case EventJoined:
		return "joined"
	case EventLeft:
		return "left"
	case EventStateChanged:
		return "state_changed"
	case EventShipChanged:
		return "ship_changed"
	case EventBumped:
		return "bumped"
	case EventCountdownStarted:
		return "countdown_started"
	case EventCountdownCancelled:
		return "countdown_cancelled"
	case EventLaunched:
		return "launched"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Event はロビーの状態遷移通知です。Kind によって使うフィールドが異なります。
//
//	Joined / Left:               Slot, ShipID
//	ShipChanged:                 Slot, ShipID (変更前), NewShipID
//	StateChanged:                Slot, From, To, ShipID
//	Bumped:                      Slot (追い出された側), By (確保した側), ShipID (失った機体), NewShipID
//	CountdownStarted/Cancelled:  Remaining
//	Launched:                    Launches
type Event struct {
	Kind      EventKind
	Slot      input.SlotID
	By        input.SlotID
	From, To  PlayerState
	ShipID    catalog.ShipID
	NewShipID catalog.ShipID
	Remaining float64
	Launches  []Launch
}

// Listener はイベントを同期的に受け取ります。Listener 内から Manager を変更してはいけません。
type Listener func(Event)
