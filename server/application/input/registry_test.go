package input_test

import (
	"errors"
	"testing"

	"shipjoy/server/application/input"

	"pgregory.net/rapid"
)

// testing.T と rapid.T の両方で使う
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

func mustState(t fataler, r *input.Registry, id input.SlotID) input.State {
	t.Helper()
	st, err := r.State(id)
	if err != nil {
		t.Fatalf("State(%s) error = %v", id, err)
	}
	return st
}

func TestRegistry_KeyActivatesSlotWithActivatingEdge(t *testing.T) {
	r := input.NewRegistry()
	if err := r.KeyDown(input.KeyC); err != nil {
		t.Fatalf("KeyDown error = %v", err)
	}

	events := r.PollFrame()
	if len(events) != 1 || events[0] != (input.Event{Kind: input.EventAdded, Slot: input.KeyboardLeft}) {
		t.Fatalf("events = %v, want [added keyboard:0]", events)
	}
	st := mustState(t, r, input.KeyboardLeft)
	if !st.Activated || !st.WasPressed(input.ButtonPrimary) {
		t.Errorf("state = %+v, want activated with primary edge", st)
	}
	if r.IsActive(input.KeyboardRight) {
		t.Error("right keyboard half should stay inactive")
	}

	// 押しっぱなしでは追加イベントもエッジも出ない
	if events := r.PollFrame(); len(events) != 0 {
		t.Errorf("events = %v, want none", events)
	}
	st = mustState(t, r, input.KeyboardLeft)
	if st.Activated || st.WasPressed(input.ButtonPrimary) || !st.IsHeld(input.ButtonPrimary) {
		t.Errorf("state = %+v, want held without edge", st)
	}
}

func TestRegistry_EscapeDoesNotActivate(t *testing.T) {
	r := input.NewRegistry()
	_ = r.KeyDown(input.KeyEscape)
	if events := r.PollFrame(); len(events) != 0 {
		t.Errorf("events = %v, want none", events)
	}
}

func TestRegistry_UnknownKey(t *testing.T) {
	r := input.NewRegistry()
	if err := r.KeyDown("KeyZ"); !errors.Is(err, input.ErrUnknownKeyCode) {
		t.Errorf("err = %v, want %v", err, input.ErrUnknownKeyCode)
	}
}

func TestRegistry_TapWithinFrameIsLatched(t *testing.T) {
	r := input.NewRegistry()
	_ = r.KeyDown(input.KeyComma)
	r.PollFrame()

	_ = r.KeyUp(input.KeyComma)
	r.PollFrame()

	_ = r.KeyDown(input.KeyComma)
	_ = r.KeyUp(input.KeyComma)
	r.PollFrame()
	if st := mustState(t, r, input.KeyboardRight); !st.WasPressed(input.ButtonPrimary) {
		t.Errorf("state = %+v, want latched primary edge", st)
	}
	r.PollFrame()
	if st := mustState(t, r, input.KeyboardRight); st.IsHeld(input.ButtonPrimary) {
		t.Errorf("state = %+v, latch should clear after one frame", st)
	}
}

func TestRegistry_DeactivateClearsEdgeHistory(t *testing.T) {
	r := input.NewRegistry()
	_ = r.KeyDown(input.KeyV)
	r.PollFrame()

	if err := r.DeactivateSlot(input.KeyboardLeft); err != nil {
		t.Fatalf("DeactivateSlot error = %v", err)
	}
	// 二重の非アクティブ化は no-op
	if err := r.DeactivateSlot(input.KeyboardLeft); err != nil {
		t.Fatalf("DeactivateSlot error = %v", err)
	}
	if _, err := r.State(input.KeyboardLeft); !errors.Is(err, input.ErrNoControllerForSlot) {
		t.Errorf("State err = %v, want %v", err, input.ErrNoControllerForSlot)
	}

	// 離脱に使ったキーを押し続けても再アクティベートしない
	events := r.PollFrame()
	if len(events) != 1 || events[0].Kind != input.EventRemoved {
		t.Fatalf("events = %v, want one removed", events)
	}
	if r.IsActive(input.KeyboardLeft) {
		t.Fatal("held key must not reactivate the slot")
	}

	// 新しい押下で同じスロットが再アクティベートされる
	_ = r.KeyDown(input.KeyC)
	events = r.PollFrame()
	if len(events) != 1 || events[0] != (input.Event{Kind: input.EventAdded, Slot: input.KeyboardLeft}) {
		t.Fatalf("events = %v, want added keyboard:0", events)
	}
	st := mustState(t, r, input.KeyboardLeft)
	if !st.Activated || !st.WasPressed(input.ButtonPrimary) {
		t.Errorf("state = %+v, want fresh activating edge", st)
	}
}

func TestRegistry_ActivateSlotIsIdempotent(t *testing.T) {
	r := input.NewRegistry()
	id := input.Gamepad(1)
	_ = r.SetGamepad(1, pad(nil))
	for range 3 {
		if err := r.ActivateSlot(id); err != nil {
			t.Fatalf("ActivateSlot error = %v", err)
		}
	}
	events := r.PollFrame()
	added := 0
	for _, ev := range events {
		if ev.Kind == input.EventAdded && ev.Slot == id {
			added++
		}
	}
	if added != 1 {
		t.Errorf("added events = %d, want 1", added)
	}
	if err := r.ActivateSlot(input.SlotID{Kind: input.SourceGamepad, Index: 9}); !errors.Is(err, input.ErrUnknownSlot) {
		t.Errorf("err = %v, want %v", err, input.ErrUnknownSlot)
	}
}

func TestRegistry_ActivateSlotWhileHeldIsActivation(t *testing.T) {
	r := input.NewRegistry()
	_ = r.KeyDown(input.KeyC)
	r.PollFrame()
	r.PollFrame()

	_ = r.DeactivateSlot(input.KeyboardLeft)
	r.PollFrame()
	if err := r.ActivateSlot(input.KeyboardLeft); err != nil {
		t.Fatalf("ActivateSlot error = %v", err)
	}

	events := r.PollFrame()
	if len(events) != 1 || events[0] != (input.Event{Kind: input.EventAdded, Slot: input.KeyboardLeft}) {
		t.Fatalf("events = %v, want [added keyboard:0]", events)
	}
	st := mustState(t, r, input.KeyboardLeft)
	if !st.Activated || !st.IsHeld(input.ButtonPrimary) {
		t.Errorf("state = %+v, want activated while primary is held", st)
	}

	// 次のティックからは通常のエッジ検出に戻る
	r.PollFrame()
	st = mustState(t, r, input.KeyboardLeft)
	if st.Activated || st.WasPressed(input.ButtonPrimary) || !st.IsHeld(input.ButtonPrimary) {
		t.Errorf("state = %+v, want held without edge", st)
	}
}

func TestRegistry_GamepadDisconnectAndReconnect(t *testing.T) {
	r := input.NewRegistry()
	id := input.Gamepad(0)

	// Deadzone 未満ではアクティベートしない
	_ = r.SetGamepad(0, pad([]float64{0.05, 0}))
	if events := r.PollFrame(); len(events) != 0 {
		t.Fatalf("events = %v, want none", events)
	}

	_ = r.SetGamepad(0, pad([]float64{0.3, 0}))
	if events := r.PollFrame(); len(events) != 1 || events[0].Slot != id {
		t.Fatalf("events = %v, want added gamepad:0", events)
	}

	_ = r.SetGamepad(0, input.GamepadSnapshot{})
	events := r.PollFrame()
	if len(events) != 1 || events[0] != (input.Event{Kind: input.EventRemoved, Slot: id}) {
		t.Fatalf("events = %v, want removed gamepad:0", events)
	}

	// 再接続時にボタンが押されていればそれがアクティベートのエッジになる
	_ = r.SetGamepad(0, pad(nil, input.PadButtonPrimary))
	events = r.PollFrame()
	if len(events) != 1 || events[0].Kind != input.EventAdded {
		t.Fatalf("events = %v, want added", events)
	}
	if st := mustState(t, r, id); !st.Activated || !st.WasPressed(input.ButtonPrimary) {
		t.Errorf("state = %+v, want activating primary edge", st)
	}
}

func TestRegistry_ActiveIsOrdered(t *testing.T) {
	r := input.NewRegistry()
	_ = r.SetGamepad(2, pad(nil, input.PadButtonPrimary))
	_ = r.KeyDown(input.KeyRight)
	_ = r.KeyDown(input.KeyA)
	r.PollFrame()

	got := r.Active()
	want := []input.SlotID{input.KeyboardLeft, input.KeyboardRight, input.Gamepad(2)}
	if len(got) != len(want) {
		t.Fatalf("Active() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Active()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

// ボタンを N ティック押し続けても primary エッジはちょうど1回
func TestRegistry_EdgeIdempotenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := input.NewRegistry()
		n := rapid.IntRange(1, 120).Draw(t, "ticks")
		useKeyboard := rapid.Bool().Draw(t, "keyboard")

		id := input.Gamepad(0)
		if useKeyboard {
			id = input.KeyboardRight
			_ = r.KeyDown(input.KeyComma)
		} else {
			_ = r.SetGamepad(0, pad(nil, input.PadButtonPrimary))
		}

		edges := 0
		for range n {
			r.PollFrame()
			if mustState(t, r, id).WasPressed(input.ButtonPrimary) {
				edges++
			}
		}
		if edges != 1 {
			t.Fatalf("primary edges over %d ticks = %d, want 1", n, edges)
		}
	})
}

func TestSlotID_LabelAndOrdinal(t *testing.T) {
	tests := []struct {
		id      input.SlotID
		label   string
		ordinal int
	}{
		{input.KeyboardLeft, "Keyboard Left", 0},
		{input.KeyboardRight, "Keyboard Right", 1},
		{input.Gamepad(0), "Gamepad 1", 2},
		{input.Gamepad(3), "Gamepad 4", 5},
	}
	for _, tt := range tests {
		if got := tt.id.Label(); got != tt.label {
			t.Errorf("%v.Label() = %q, want %q", tt.id, got, tt.label)
		}
		if got := tt.id.Ordinal(); got != tt.ordinal {
			t.Errorf("%v.Ordinal() = %d, want %d", tt.id, got, tt.ordinal)
		}
		if back, ok := input.SlotFromOrdinal(tt.ordinal); !ok || back != tt.id {
			t.Errorf("SlotFromOrdinal(%d) = %v, %v, want %v", tt.ordinal, back, ok, tt.id)
		}
	}
}
