// Package lobby は機体選択ロビーの状態機械です。
//
// 1ティックの処理順:
//  1. スロットの追加/削除イベントでプレイヤーを作成/削除する
//  2. スロット Ordinal の昇順に各プレイヤーのエッジ入力を処理する (参加したティックの入力は無視)
//  3. 確保された機体に重なっている Browsing プレイヤーを次の空き機体へ送る
//  4. カウントダウンを全員 Ready かどうかで毎ティック再評価する
package lobby

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"shipjoy/server/application/catalog"
	"shipjoy/server/application/input"
)

var (
	// ErrCountdownPrecondition はプレイヤー不在または Ready でないプレイヤーがいる状態で
	// カウントダウンを開始しようとした場合に返されます。
	ErrCountdownPrecondition = errors.New("countdown precondition violated")
	// ErrPlayerNotFound はスロットに対応するプレイヤーがいない場合に返されます。
	ErrPlayerNotFound = errors.New("lobby player not found")
)

const DefaultCountdown = 5.0

// Controls はロビーが参照するコントローラーの境界です。input.Registry が実装します。
type Controls interface {
	State(id input.SlotID) (input.State, error)
	DeactivateSlot(id input.SlotID) error
}

type Manager struct {
	catalog  *catalog.Catalog
	controls Controls
	rng      *rand.Rand

	players [input.MaxSlots]*Player
	tick    uint64

	countdownDuration float64
	countdownActive   bool
	remaining         float64

	listeners []Listener
}

type Option func(*Manager)

// WithRand は機体のランダム割り当てに使う乱数源を差し替えます。
func WithRand(rng *rand.Rand) Option {
	return func(m *Manager) { m.rng = rng }
}

// WithCountdown はカウントダウンの長さ (秒) を設定します。
func WithCountdown(seconds float64) Option {
	return func(m *Manager) { m.countdownDuration = seconds }
}

func NewManager(c *catalog.Catalog, controls Controls, opts ...Option) *Manager {
	m := &Manager{
		catalog:           c,
		controls:          controls,
		countdownDuration: DefaultCountdown,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return m
}

func (m *Manager) Subscribe(l Listener) {
	m.listeners = append(m.listeners, l)
}

func (m *Manager) emit(ev Event) {
	for _, l := range m.listeners {
		l(ev)
	}
}

// Update はロビーを1ティック進めます。カウントダウンが完了した場合は Ready だった
// プレイヤーを返し、ロビーは空になります。
func (m *Manager) Update(dt float64, events []input.Event) ([]Launch, bool) {
	m.tick++

	for _, ev := range events {
		switch ev.Kind {
		case input.EventAdded:
			m.join(ev.Slot)
		case input.EventRemoved:
			m.remove(ev.Slot)
		}
	}

	for _, p := range m.players {
		if p == nil || p.joinedAt == m.tick {
			continue
		}
		st, err := m.controls.State(p.Slot)
		if err != nil {
			// 非アクティブ化は同じティックの削除イベントで届く
			continue
		}
		m.handleInput(p, st)
	}

	m.nudgeBrowsers()
	return m.updateCountdown(dt)
}

func (m *Manager) handleInput(p *Player, st input.State) {
	switch p.State {
	case Browsing:
		if st.WasPressed(input.ButtonLeft) {
			m.cycle(p, -1)
		} else if st.WasPressed(input.ButtonRight) {
			m.cycle(p, 1)
		}
		switch {
		case st.WasPressed(input.ButtonPrimary):
			m.claim(p)
		case st.WasPressed(input.ButtonSecondary):
			_ = m.controls.DeactivateSlot(p.Slot)
			m.remove(p.Slot)
		}
	case Claimed:
		switch {
		case st.WasPressed(input.ButtonPrimary):
			m.setState(p, Ready)
		case st.WasPressed(input.ButtonSecondary):
			m.setState(p, Browsing)
		}
	case Ready:
		if st.WasPressed(input.ButtonSecondary) {
			m.setState(p, Claimed)
		}
	}
}

// join はスロットのプレイヤーを Browsing で作成します。既に存在する場合は何もしません。
func (m *Manager) join(slot input.SlotID) {
	if !slot.Valid() || m.players[slot.Ordinal()] != nil {
		return
	}
	p := &Player{
		Slot:     slot,
		Label:    slot.Label(),
		State:    Browsing,
		joinedAt: m.tick,
	}
	if id, ok := m.randomUnclaimed(); ok {
		p.ShipID = id
	} else {
		first, _ := m.catalog.At(0)
		p.ShipID = first.ID
	}
	m.players[slot.Ordinal()] = p
	m.emit(Event{Kind: EventJoined, Slot: slot, ShipID: p.ShipID})
}

// remove はプレイヤーを削除し、確保していた機体を解放します。
func (m *Manager) remove(slot input.SlotID) {
	if !slot.Valid() {
		return
	}
	p := m.players[slot.Ordinal()]
	if p == nil {
		return
	}
	m.players[slot.Ordinal()] = nil
	m.emit(Event{Kind: EventLeft, Slot: slot, ShipID: p.ShipID})
}

func (m *Manager) setState(p *Player, to PlayerState) {
	from := p.State
	p.State = to
	m.emit(Event{Kind: EventStateChanged, Slot: p.Slot, From: from, To: to, ShipID: p.ShipID})
}

// holder は機体を Claimed/Ready で占有しているプレイヤーを返します。
func (m *Manager) holder(id catalog.ShipID, except *Player) *Player {
	for _, p := range m.players {
		if p != nil && p != except && p.State.Holds() && p.ShipID == id {
			return p
		}
	}
	return nil
}

// cycle はカタログを dir 方向に巡回し、他プレイヤーが占有していない最初の機体に移ります。
// 他の Browsing プレイヤーが見ている機体はスキップしません。
func (m *Manager) cycle(p *Player, dir int) {
	n := m.catalog.Len()
	cur, err := m.catalog.IndexOf(p.ShipID)
	if err != nil {
		cur = 0
	}
	for k := 1; k < n; k++ {
		idx := ((cur+dir*k)%n + n) % n
		ship, _ := m.catalog.At(idx)
		if m.holder(ship.ID, p) == nil {
			prev := p.ShipID
			p.ShipID = ship.ID
			m.emit(Event{Kind: EventShipChanged, Slot: p.Slot, ShipID: prev, NewShipID: ship.ID})
			return
		}
	}
}

// claim は現在の機体を確保します。
//
// 既に確保されている場合:
//   - 同じティックに確保した相手なら先に処理された方 (Ordinal が小さい方) が勝ち、
//     p は Browsing のまま空き機体へ再割り当てされる
//   - それ以前から確保している相手なら、相手を Browsing に戻して空き機体を再割り当てし、p が確保する
func (m *Manager) claim(p *Player) {
	if h := m.holder(p.ShipID, p); h != nil {
		if h.ClaimedAt == m.tick {
			lost := p.ShipID
			m.reassign(p)
			m.emit(Event{Kind: EventBumped, Slot: p.Slot, By: h.Slot, ShipID: lost, NewShipID: p.ShipID})
			return
		}
		lost := h.ShipID
		from := h.State
		h.State = Browsing
		h.ClaimedAt = 0
		m.emit(Event{Kind: EventStateChanged, Slot: h.Slot, From: from, To: Browsing, ShipID: lost})
		p.ClaimedAt = m.tick
		p.State = Claimed
		m.reassign(h)
		m.emit(Event{Kind: EventBumped, Slot: h.Slot, By: p.Slot, ShipID: lost, NewShipID: h.ShipID})
		m.emit(Event{Kind: EventStateChanged, Slot: p.Slot, From: Browsing, To: Claimed, ShipID: p.ShipID})
		return
	}
	p.ClaimedAt = m.tick
	m.setState(p, Claimed)
}

// reassign は p に占有されていない機体を一様ランダムに割り当てます。空きがなければ変更しません。
func (m *Manager) reassign(p *Player) {
	if id, ok := m.randomUnclaimed(); ok {
		p.ShipID = id
	}
}

func (m *Manager) randomUnclaimed() (catalog.ShipID, bool) {
	var free []catalog.ShipID
	for _, id := range m.catalog.IDs() {
		if m.holder(id, nil) == nil {
			free = append(free, id)
		}
	}
	if len(free) == 0 {
		return 0, false
	}
	return free[m.rng.IntN(len(free))], true
}

// nudgeBrowsers は占有済みの機体を見ている Browsing プレイヤーを次の空き機体へ送ります。
func (m *Manager) nudgeBrowsers() {
	for _, p := range m.players {
		if p == nil || p.State != Browsing {
			continue
		}
		if m.holder(p.ShipID, p) != nil {
			m.cycle(p, 1)
		}
	}
}

func (m *Manager) allReady() bool {
	n := 0
	for _, p := range m.players {
		if p == nil {
			continue
		}
		if p.State != Ready {
			return false
		}
		n++
	}
	return n > 0
}

// StartCountdown はカウントダウンを最初から開始します。
// プレイヤーがいない、または全員が Ready でない場合は ErrCountdownPrecondition を返します。
func (m *Manager) StartCountdown() error {
	if !m.allReady() {
		return ErrCountdownPrecondition
	}
	m.countdownActive = true
	m.remaining = m.countdownDuration
	m.emit(Event{Kind: EventCountdownStarted, Remaining: m.remaining})
	return nil
}

func (m *Manager) cancelCountdown() {
	m.countdownActive = false
	m.remaining = m.countdownDuration
	m.emit(Event{Kind: EventCountdownCancelled, Remaining: m.remaining})
}

// updateCountdown は全員 Ready かどうかを毎ティック評価し直します。
func (m *Manager) updateCountdown(dt float64) ([]Launch, bool) {
	ready := m.allReady()
	switch {
	case ready && !m.countdownActive:
		_ = m.StartCountdown()
		return nil, false
	case !ready && m.countdownActive:
		m.cancelCountdown()
		return nil, false
	case !m.countdownActive:
		return nil, false
	}

	m.remaining -= dt
	if m.remaining > 0 {
		return nil, false
	}
	return m.launch(), true
}

func (m *Manager) launch() []Launch {
	var launches []Launch
	for i, p := range m.players {
		if p != nil && p.State == Ready {
			launches = append(launches, Launch{Slot: p.Slot, Label: p.Label, ShipID: p.ShipID})
		}
		m.players[i] = nil
	}
	m.countdownActive = false
	m.remaining = m.countdownDuration
	m.emit(Event{Kind: EventLaunched, Launches: launches})
	return launches
}

// Reset はロビーを空にし、渡されたスロットを Browsing で参加させ直します。
// 機体の確保は引き継ぎません。
func (m *Manager) Reset(slots []input.SlotID) {
	m.tick++
	for i := range m.players {
		m.players[i] = nil
	}
	m.countdownActive = false
	m.remaining = m.countdownDuration
	for _, s := range slots {
		m.join(s)
	}
}

// Remove はスロットのプレイヤーを削除します。
func (m *Manager) Remove(slot input.SlotID) error {
	if !slot.Valid() || m.players[slot.Ordinal()] == nil {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, slot)
	}
	m.remove(slot)
	return nil
}

// Players はプレイヤーのコピーを Ordinal 順に返します。
func (m *Manager) Players() []Player {
	var out []Player
	for _, p := range m.players {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

func (m *Manager) Player(slot input.SlotID) (Player, error) {
	if !slot.Valid() || m.players[slot.Ordinal()] == nil {
		return Player{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, slot)
	}
	return *m.players[slot.Ordinal()], nil
}

func (m *Manager) CountdownActive() bool {
	return m.countdownActive
}

// CountdownRemaining は残り秒数です。非アクティブ時はカウントダウンの全長を返します。
func (m *Manager) CountdownRemaining() float64 {
	if !m.countdownActive {
		return m.countdownDuration
	}
	return m.remaining
}

// CountdownSeconds は表示用の残り秒数 (切り上げ) です。
func (m *Manager) CountdownSeconds() int {
	return int(math.Ceil(m.CountdownRemaining()))
}
