package input

import (
	"fmt"

	"shipjoy/server/domain"
)

// EventKind はスロットのライフサイクルイベントの種別です。
type EventKind uint8

const (
	EventAdded EventKind = iota + 1
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Event はスロットの inactive→active / active→inactive 遷移を表します。
type Event struct {
	Kind EventKind
	Slot SlotID
}

// State はアクティブなスロットの1ティック分の正規化済み入力です。
type State struct {
	Axis     domain.Vec2
	Held     Buttons
	Pressed  Buttons // このティックで押された
	Released Buttons // このティックで離された
	// Activated はこのティックでスロットがアクティブになったことを示します。
	// Pressed にはアクティベートしたボタンが含まれます。
	Activated bool
}

func (s State) WasPressed(b Buttons) bool { return s.Pressed.Has(b) }
func (s State) IsHeld(b Buttons) bool     { return s.Held.Has(b) }

type slot struct {
	id       SlotID
	active   bool
	prevHeld Buttons
	// prevEngaged は非アクティブ中も更新し、押しっぱなしの入力で再アクティベートしないようにする
	prevEngaged uint64
	// armed は ActivateSlot 後、次の PollFrame をアクティベーションとして扱う
	armed bool
	state State
}

// Registry はキーボードとゲームパッドの生入力を論理スロットへ対応付けます。
// ゴルーチンセーフではありません。1つのティックループから使います。
type Registry struct {
	slots [MaxSlots]slot

	keysDown  map[KeyCode]struct{}
	downSince map[KeyCode]struct{} // 前回の PollFrame 以降に押されたキー
	latched   map[KeyCode]struct{} // 前回の PollFrame 以降に押されて離されたキー

	pads [MaxGamepads]GamepadSnapshot

	pending []Event
}

func NewRegistry() *Registry {
	r := &Registry{
		keysDown:  make(map[KeyCode]struct{}),
		downSince: make(map[KeyCode]struct{}),
		latched:   make(map[KeyCode]struct{}),
	}
	for i := range r.slots {
		r.slots[i].id, _ = SlotFromOrdinal(i)
	}
	return r
}

// KeyDown はキー押下を記録します。
func (r *Registry) KeyDown(code KeyCode) error {
	if !IsKnownKey(code) {
		return fmt.Errorf("%w: %q", ErrUnknownKeyCode, code)
	}
	r.keysDown[code] = struct{}{}
	r.downSince[code] = struct{}{}
	return nil
}

// KeyUp はキー解放を記録します。同じフレーム内の押下と解放は1回の押下として扱われます。
func (r *Registry) KeyUp(code KeyCode) error {
	if !IsKnownKey(code) {
		return fmt.Errorf("%w: %q", ErrUnknownKeyCode, code)
	}
	delete(r.keysDown, code)
	if _, ok := r.downSince[code]; ok {
		r.latched[code] = struct{}{}
	}
	return nil
}

// SetGamepad はゲームパッド index の最新スナップショットを記録します。
func (r *Registry) SetGamepad(index int, s GamepadSnapshot) error {
	if index < 0 || index >= MaxGamepads {
		return fmt.Errorf("%w: gamepad %d", ErrUnknownSlot, index)
	}
	r.pads[index] = GamepadSnapshot{
		Connected: s.Connected,
		Axes:      append([]float64(nil), s.Axes...),
		Buttons:   append([]ButtonSample(nil), s.Buttons...),
	}
	return nil
}

// PollFrame はティックごとに1回、他のコンポーネントが状態を読む前に呼び出します。
// アクティベーションとエッジ計算は同じ生サンプルから同じパスで行います。
// 戻り値はこのティックに発生したスロットの追加/削除で、前回以降の DeactivateSlot 分を先頭に含みます。
func (r *Registry) PollFrame() []Event {
	events := r.pending
	r.pending = nil

	keys := make(map[KeyCode]struct{}, len(r.keysDown)+len(r.latched))
	for k := range r.keysDown {
		keys[k] = struct{}{}
	}
	for k := range r.latched {
		keys[k] = struct{}{}
	}
	kbHeld := keyboardHeld(keys)

	for i := range r.slots {
		s := &r.slots[i]
		var (
			axis    domain.Vec2
			held    Buttons
			engaged uint64
		)
		switch s.id.Kind {
		case SourceKeyboard:
			raw := kbHeld[s.id.Index]
			axis, held = NormalizeKeyboard(raw)
			engaged = uint64(raw &^ ButtonMenu)
		case SourceGamepad:
			pad := r.pads[s.id.Index]
			if !pad.Connected {
				s.prevEngaged = 0
				if s.active {
					r.deactivate(s)
					events = append(events, Event{Kind: EventRemoved, Slot: s.id})
				}
				continue
			}
			axis, held = NormalizeGamepad(pad)
			engaged = gamepadEngaged(pad)
		}

		newlyEngaged := engaged&^s.prevEngaged != 0
		s.prevEngaged = engaged

		if s.armed {
			s.armed = false
			s.state = State{Axis: axis, Held: held, Pressed: held, Activated: true}
			s.prevHeld = held
			continue
		}
		if !s.active {
			if !newlyEngaged {
				continue
			}
			s.active = true
			events = append(events, Event{Kind: EventAdded, Slot: s.id})
			s.state = State{Axis: axis, Held: held, Pressed: held, Activated: true}
			s.prevHeld = held
			continue
		}

		s.state = State{
			Axis:     axis,
			Held:     held,
			Pressed:  held &^ s.prevHeld,
			Released: s.prevHeld &^ held,
		}
		s.prevHeld = held
	}

	clear(r.latched)
	clear(r.downSince)
	return events
}

// ActivateSlot はスロットをアクティブにします。既にアクティブなら何もしません。
// Added イベントは次の PollFrame で返され、そのティックの入力はアクティベーションとして扱われます。
func (r *Registry) ActivateSlot(id SlotID) error {
	s, err := r.slot(id)
	if err != nil {
		return err
	}
	if s.active {
		return nil
	}
	s.active = true
	s.armed = true
	s.prevHeld = 0
	s.state = State{Activated: true}
	r.pending = append(r.pending, Event{Kind: EventAdded, Slot: id})
	return nil
}

// DeactivateSlot はスロットを非アクティブにし、エッジ履歴を消去します。
// 非アクティブなスロットに対しては何もしません。Removed イベントは次の PollFrame で返されます。
func (r *Registry) DeactivateSlot(id SlotID) error {
	s, err := r.slot(id)
	if err != nil {
		return err
	}
	if !s.active {
		return nil
	}
	r.deactivate(s)
	r.pending = append(r.pending, Event{Kind: EventRemoved, Slot: id})
	return nil
}

func (r *Registry) deactivate(s *slot) {
	s.active = false
	s.armed = false
	s.prevHeld = 0
	s.state = State{}
}

// State はスロットの今ティックの入力を返します。
func (r *Registry) State(id SlotID) (State, error) {
	s, err := r.slot(id)
	if err != nil {
		return State{}, err
	}
	if !s.active {
		return State{}, fmt.Errorf("%w: %s", ErrNoControllerForSlot, id)
	}
	return s.state, nil
}

// IsActive はスロットがアクティブかを返します。
func (r *Registry) IsActive(id SlotID) bool {
	s, err := r.slot(id)
	return err == nil && s.active
}

// Active はアクティブなスロットを Ordinal 順に返します。
func (r *Registry) Active() []SlotID {
	var out []SlotID
	for i := range r.slots {
		if r.slots[i].active {
			out = append(out, r.slots[i].id)
		}
	}
	return out
}

func (r *Registry) slot(id SlotID) (*slot, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSlot, id)
	}
	return &r.slots[id.Ordinal()], nil
}
