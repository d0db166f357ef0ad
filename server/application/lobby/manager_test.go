package lobby_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	"shipjoy/server/application/catalog"
	"shipjoy/server/application/input"
	"shipjoy/server/application/lobby"

	"pgregory.net/rapid"
)

const dt = 1.0 / 60

type fakeControls struct {
	states      map[input.SlotID]input.State
	deactivated []input.SlotID
}

func newFakeControls() *fakeControls {
	return &fakeControls{states: make(map[input.SlotID]input.State)}
}

func (f *fakeControls) State(id input.SlotID) (input.State, error) {
	st, ok := f.states[id]
	if !ok {
		return input.State{}, input.ErrNoControllerForSlot
	}
	return st, nil
}

func (f *fakeControls) DeactivateSlot(id input.SlotID) error {
	delete(f.states, id)
	f.deactivated = append(f.deactivated, id)
	return nil
}

type harness struct {
	t        *testing.T
	controls *fakeControls
	manager  *lobby.Manager
	events   []lobby.Event
}

func newHarness(t *testing.T, c *catalog.Catalog) *harness {
	h := &harness{t: t, controls: newFakeControls()}
	h.manager = lobby.NewManager(c, h.controls, lobby.WithRand(rand.New(rand.NewPCG(1, 2))))
	h.manager.Subscribe(func(ev lobby.Event) { h.events = append(h.events, ev) })
	return h
}

func (h *harness) join(slots ...input.SlotID) {
	var evs []input.Event
	for _, s := range slots {
		h.controls.states[s] = input.State{Activated: true, Pressed: input.ButtonPrimary, Held: input.ButtonPrimary}
		evs = append(evs, input.Event{Kind: input.EventAdded, Slot: s})
	}
	h.manager.Update(dt, evs)
	h.idle()
}

// idle は全スロットのエッジを消す
func (h *harness) idle() {
	for s := range h.controls.states {
		h.controls.states[s] = input.State{}
	}
}

// press は指定スロットのエッジを同じティックに発生させて1ティック進める
func (h *harness) press(presses map[input.SlotID]input.Buttons) ([]lobby.Launch, bool) {
	for s, b := range presses {
		h.controls.states[s] = input.State{Pressed: b, Held: b}
	}
	launches, ok := h.manager.Update(dt, nil)
	h.idle()
	return launches, ok
}

func (h *harness) player(slot input.SlotID) lobby.Player {
	h.t.Helper()
	p, err := h.manager.Player(slot)
	if err != nil {
		h.t.Fatalf("Player(%s) error = %v", slot, err)
	}
	return p
}

// steer は Browsing プレイヤーを目的の機体まで右に巡回させる
func (h *harness) steer(slot input.SlotID, ship catalog.ShipID) {
	h.t.Helper()
	for range 32 {
		if h.player(slot).ShipID == ship {
			return
		}
		h.press(map[input.SlotID]input.Buttons{slot: input.ButtonRight})
	}
	h.t.Fatalf("could not steer %s to ship %d", slot, ship)
}

func assertUnique(t interface {
	Helper()
	Fatalf(string, ...any)
}, players []lobby.Player) {
	t.Helper()
	held := make(map[catalog.ShipID]input.SlotID)
	for _, p := range players {
		if !p.State.Holds() {
			continue
		}
		if other, dup := held[p.ShipID]; dup {
			t.Fatalf("ship %d held by both %s and %s", p.ShipID, other, p.Slot)
		}
		held[p.ShipID] = p.Slot
	}
}

func mustCatalog(t *testing.T, ids ...catalog.ShipID) *catalog.Catalog {
	t.Helper()
	ships := make([]catalog.Ship, len(ids))
	for i, id := range ids {
		ships[i] = catalog.Ship{ID: id}
	}
	c, err := catalog.New(ships)
	if err != nil {
		t.Fatalf("catalog.New error = %v", err)
	}
	return c
}

func TestManager_JoinIgnoresActivatingPress(t *testing.T) {
	h := newHarness(t, catalog.Default())
	h.join(input.KeyboardLeft)

	p := h.player(input.KeyboardLeft)
	if p.State != lobby.Browsing {
		t.Errorf("State = %v, want %v", p.State, lobby.Browsing)
	}
	if p.Label != "Keyboard Left" {
		t.Errorf("Label = %q, want %q", p.Label, "Keyboard Left")
	}
	if _, err := catalog.Default().Lookup(p.ShipID); err != nil {
		t.Errorf("ShipID %d not in catalog: %v", p.ShipID, err)
	}
}

func TestManager_JoinAssignsUnclaimedShip(t *testing.T) {
	h := newHarness(t, mustCatalog(t, 1, 2))
	h.join(input.Gamepad(0))
	h.press(map[input.SlotID]input.Buttons{input.Gamepad(0): input.ButtonPrimary})
	claimed := h.player(input.Gamepad(0)).ShipID

	for range 10 {
		h.join(input.Gamepad(1))
		if got := h.player(input.Gamepad(1)).ShipID; got == claimed {
			t.Fatalf("joined on claimed ship %d", got)
		}
		_ = h.manager.Remove(input.Gamepad(1))
	}
}

func TestManager_CycleSkipsClaimedShipsAndWraps(t *testing.T) {
	h := newHarness(t, mustCatalog(t, 1, 2, 3, 4))
	a, b := input.KeyboardLeft, input.KeyboardRight
	h.join(a, b)
	h.steer(a, 2)
	h.press(map[input.SlotID]input.Buttons{a: input.ButtonPrimary})

	h.steer(b, 1)
	h.press(map[input.SlotID]input.Buttons{b: input.ButtonRight})
	if got := h.player(b).ShipID; got != 3 {
		t.Errorf("after right from 1: ShipID = %d, want 3", got)
	}
	h.press(map[input.SlotID]input.Buttons{b: input.ButtonRight})
	h.press(map[input.SlotID]input.Buttons{b: input.ButtonRight})
	if got := h.player(b).ShipID; got != 1 {
		t.Errorf("after wrap: ShipID = %d, want 1", got)
	}
	h.press(map[input.SlotID]input.Buttons{b: input.ButtonLeft})
	if got := h.player(b).ShipID; got != 4 {
		t.Errorf("after left from 1: ShipID = %d, want 4", got)
	}
}

func TestManager_CycleDoesNotSkipOtherBrowsers(t *testing.T) {
	h := newHarness(t, mustCatalog(t, 1, 2, 3))
	a, b := input.Gamepad(0), input.Gamepad(1)
	h.join(a, b)
	h.steer(a, 2)
	h.steer(b, 1)
	h.press(map[input.SlotID]input.Buttons{b: input.ButtonRight})
	if got := h.player(b).ShipID; got != 2 {
		t.Errorf("ShipID = %d, want 2", got)
	}
}

func TestManager_StateTransitions(t *testing.T) {
	h := newHarness(t, catalog.Default())
	s := input.Gamepad(2)
	h.join(s)
	ship := h.player(s).ShipID

	steps := []struct {
		press input.Buttons
		want  lobby.PlayerState
	}{
		{input.ButtonPrimary, lobby.Claimed},
		{input.ButtonPrimary, lobby.Ready},
		{input.ButtonPrimary, lobby.Ready},
		{input.ButtonSecondary, lobby.Claimed},
		{input.ButtonSecondary, lobby.Browsing},
		{input.ButtonPrimary | input.ButtonSecondary, lobby.Claimed},
	}
	for i, step := range steps {
		h.press(map[input.SlotID]input.Buttons{s: step.press})
		p := h.player(s)
		if p.State != step.want {
			t.Fatalf("step %d: State = %v, want %v", i, p.State, step.want)
		}
		if p.ShipID != ship {
			t.Fatalf("step %d: ShipID = %d, want %d", i, p.ShipID, ship)
		}
	}
}

func TestManager_ReleaseReturnsShipToPool(t *testing.T) {
	h := newHarness(t, mustCatalog(t, 1, 2))
	a, b := input.KeyboardLeft, input.KeyboardRight
	h.join(a, b)
	h.steer(a, 1)
	h.press(map[input.SlotID]input.Buttons{a: input.ButtonPrimary})
	h.press(map[input.SlotID]input.Buttons{a: input.ButtonSecondary})

	h.steer(b, 2)
	h.press(map[input.SlotID]input.Buttons{b: input.ButtonLeft})
	if got := h.player(b).ShipID; got != 1 {
		t.Errorf("ShipID = %d, want released ship 1", got)
	}
}

func TestManager_BrowsingSecondaryLeaves(t *testing.T) {
	h := newHarness(t, catalog.Default())
	s := input.KeyboardRight
	h.join(s)
	h.press(map[input.SlotID]input.Buttons{s: input.ButtonSecondary})

	if _, err := h.manager.Player(s); !errors.Is(err, lobby.ErrPlayerNotFound) {
		t.Errorf("Player err = %v, want %v", err, lobby.ErrPlayerNotFound)
	}
	if len(h.controls.deactivated) != 1 || h.controls.deactivated[0] != s {
		t.Errorf("deactivated = %v, want [%v]", h.controls.deactivated, s)
	}
	// 次のティックで届く削除イベントは no-op
	h.manager.Update(dt, []input.Event{{Kind: input.EventRemoved, Slot: s}})
	if n := len(h.manager.Players()); n != 0 {
		t.Errorf("players = %d, want 0", n)
	}
}

func TestManager_DisconnectReleasesClaim(t *testing.T) {
	h := newHarness(t, mustCatalog(t, 1, 2))
	a, b := input.Gamepad(0), input.Gamepad(1)
	h.join(a, b)
	h.steer(a, 1)
	h.press(map[input.SlotID]input.Buttons{a: input.ButtonPrimary})

	delete(h.controls.states, a)
	h.manager.Update(dt, []input.Event{{Kind: input.EventRemoved, Slot: a}})

	h.steer(b, 1)
	h.press(map[input.SlotID]input.Buttons{b: input.ButtonPrimary})
	if p := h.player(b); p.State != lobby.Claimed || p.ShipID != 1 {
		t.Errorf("player = %+v, want Claimed on ship 1", p)
	}
}

// 同じティックに同じ機体を確保した場合、Ordinal が小さい方が勝つ
func TestManager_SameTickClaimRace(t *testing.T) {
	h := newHarness(t, mustCatalog(t, 1, 2, 3, 5))
	a, b := input.KeyboardRight, input.Gamepad(0)
	h.join(a, b)
	h.steer(a, 3)
	h.steer(b, 3)
	h.events = nil

	h.press(map[input.SlotID]input.Buttons{a: input.ButtonPrimary, b: input.ButtonPrimary})

	pa, pb := h.player(a), h.player(b)
	if pa.State != lobby.Claimed || pa.ShipID != 3 {
		t.Errorf("winner = %+v, want Claimed on ship 3", pa)
	}
	if pb.State != lobby.Browsing || pb.ShipID == 3 {
		t.Errorf("loser = %+v, want Browsing on another ship", pb)
	}
	assertUnique(t, h.manager.Players())

	bumped := false
	for _, ev := range h.events {
		if ev.Kind == lobby.EventBumped && ev.Slot == b && ev.By == a && ev.ShipID == 3 && ev.NewShipID == pb.ShipID {
			bumped = true
		}
	}
	if !bumped {
		t.Errorf("events = %+v, want bumped event for %s", h.events, b)
	}
}

// 先に確保したプレイヤーの機体を後から確保すると、先の確保者が Browsing に戻される
func TestManager_LaterClaimBumpsEarlierHolder(t *testing.T) {
	h := newHarness(t, mustCatalog(t, 7))
	a, b := input.Gamepad(0), input.Gamepad(1)
	h.join(a, b)
	h.press(map[input.SlotID]input.Buttons{a: input.ButtonPrimary})
	h.press(map[input.SlotID]input.Buttons{b: input.ButtonPrimary})

	if p := h.player(a); p.State != lobby.Browsing {
		t.Errorf("earlier holder State = %v, want %v", p.State, lobby.Browsing)
	}
	if p := h.player(b); p.State != lobby.Claimed || p.ShipID != 7 {
		t.Errorf("claimant = %+v, want Claimed on ship 7", p)
	}
	assertUnique(t, h.manager.Players())
}

func TestManager_ClaimNudgesHoveringBrowser(t *testing.T) {
	h := newHarness(t, mustCatalog(t, 1, 2, 3))
	a, b := input.Gamepad(0), input.Gamepad(1)
	h.join(a, b)
	h.steer(a, 2)
	h.steer(b, 2)
	h.press(map[input.SlotID]input.Buttons{a: input.ButtonPrimary})
	if got := h.player(b).ShipID; got != 3 {
		t.Errorf("hovering browser ShipID = %d, want 3", got)
	}
}

func TestManager_StartCountdownWithoutPlayers(t *testing.T) {
	h := newHarness(t, catalog.Default())
	if err := h.manager.StartCountdown(); !errors.Is(err, lobby.ErrCountdownPrecondition) {
		t.Errorf("err = %v, want %v", err, lobby.ErrCountdownPrecondition)
	}
	if h.manager.CountdownActive() {
		t.Error("countdown should not be active")
	}
}

// readyUp は全員が Ready になるまで primary を押し続ける。同じ機体で競合しても数ティックで揃う。
func readyUp(h *harness, slots ...input.SlotID) {
	h.t.Helper()
	presses := make(map[input.SlotID]input.Buttons)
	for _, s := range slots {
		presses[s] = input.ButtonPrimary
	}
	for range 2*len(slots) + 2 {
		h.press(presses)
		all := true
		for _, s := range slots {
			if h.player(s).State != lobby.Ready {
				all = false
			}
		}
		if all {
			return
		}
	}
	h.t.Fatalf("players %v never became ready", slots)
}

// advance は 0.5 秒刻みでティックを進める
func advance(h *harness, seconds float64) ([]lobby.Launch, bool) {
	for range int(seconds * 2) {
		if launches, ok := h.manager.Update(0.5, nil); ok {
			return launches, ok
		}
	}
	return nil, false
}

func TestManager_CountdownResetsWhenPlayerUnreadies(t *testing.T) {
	h := newHarness(t, catalog.Default())
	a, b := input.KeyboardLeft, input.Gamepad(3)
	h.join(a, b)
	readyUp(h, a, b)
	if !h.manager.CountdownActive() || h.manager.CountdownSeconds() != 5 {
		t.Fatalf("countdown active=%v seconds=%d, want true, 5", h.manager.CountdownActive(), h.manager.CountdownSeconds())
	}

	advance(h, 3)
	if got := h.manager.CountdownSeconds(); got != 2 {
		t.Errorf("CountdownSeconds() = %d, want 2", got)
	}

	h.press(map[input.SlotID]input.Buttons{b: input.ButtonSecondary})
	if h.manager.CountdownActive() {
		t.Fatal("countdown should cancel when a player is no longer ready")
	}

	h.press(map[input.SlotID]input.Buttons{b: input.ButtonPrimary})
	if !h.manager.CountdownActive() {
		t.Fatal("countdown should restart when all players are ready again")
	}
	if got := h.manager.CountdownRemaining(); got != lobby.DefaultCountdown {
		t.Errorf("CountdownRemaining() = %v, want %v", got, lobby.DefaultCountdown)
	}
}

func TestManager_CountdownCancelsWhenNewPlayerJoins(t *testing.T) {
	h := newHarness(t, catalog.Default())
	h.join(input.Gamepad(0))
	readyUp(h, input.Gamepad(0))
	h.join(input.Gamepad(1))
	if h.manager.CountdownActive() {
		t.Error("countdown should cancel when a browsing player joins")
	}
}

func TestManager_FullScenarioLaunches(t *testing.T) {
	h := newHarness(t, catalog.Default())
	s := input.KeyboardLeft
	h.join(s)
	h.press(map[input.SlotID]input.Buttons{s: input.ButtonRight})
	h.press(map[input.SlotID]input.Buttons{s: input.ButtonRight})
	ship := h.player(s).ShipID
	readyUp(h, s)

	launches, ok := advance(h, lobby.DefaultCountdown+1)
	if !ok {
		t.Fatal("countdown did not complete")
	}
	if len(launches) != 1 || launches[0].Slot != s || launches[0].ShipID != ship {
		t.Errorf("launches = %+v, want [%s on %d]", launches, s, ship)
	}
	if n := len(h.manager.Players()); n != 0 {
		t.Errorf("players after launch = %d, want 0", n)
	}
}

func TestManager_ResetRejoinsAsBrowsing(t *testing.T) {
	h := newHarness(t, catalog.Default())
	h.manager.Reset([]input.SlotID{input.Gamepad(1), input.KeyboardLeft})
	players := h.manager.Players()
	if len(players) != 2 || players[0].Slot != input.KeyboardLeft {
		t.Fatalf("players = %+v, want keyboard left first", players)
	}
	for _, p := range players {
		if p.State != lobby.Browsing {
			t.Errorf("%s State = %v, want %v", p.Slot, p.State, lobby.Browsing)
		}
	}
}

// ランダムな入力列でも Claimed/Ready の機体は常に一意
func TestManager_UniquenessProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c, err := catalog.New([]catalog.Ship{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}})
		if err != nil {
			rt.Fatalf("catalog.New error = %v", err)
		}
		controls := newFakeControls()
		seed := rapid.Uint64().Draw(rt, "seed")
		m := lobby.NewManager(c, controls, lobby.WithRand(rand.New(rand.NewPCG(seed, seed))), lobby.WithCountdown(0.1))
		buttons := []input.Buttons{0, input.ButtonLeft, input.ButtonRight, input.ButtonPrimary, input.ButtonSecondary}

		ticks := rapid.IntRange(1, 200).Draw(rt, "ticks")
		for range ticks {
			var events []input.Event
			for ord := range input.MaxSlots {
				slot, _ := input.SlotFromOrdinal(ord)
				_, active := controls.states[slot]
				switch rapid.IntRange(0, 9).Draw(rt, "lifecycle") {
				case 0:
					if !active {
						controls.states[slot] = input.State{Activated: true}
						events = append(events, input.Event{Kind: input.EventAdded, Slot: slot})
					}
				case 1:
					if active {
						delete(controls.states, slot)
						events = append(events, input.Event{Kind: input.EventRemoved, Slot: slot})
					}
				default:
					if active {
						b := rapid.SampledFrom(buttons).Draw(rt, "button")
						controls.states[slot] = input.State{Pressed: b, Held: b}
					}
				}
			}
			// DeactivateSlot で離脱したスロットの削除イベント
			for _, s := range controls.deactivated {
				events = append(events, input.Event{Kind: input.EventRemoved, Slot: s})
			}
			controls.deactivated = nil

			m.Update(dt, events)
			assertUnique(rt, m.Players())
		}
	})
}
