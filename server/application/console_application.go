package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"shipjoy/server/application/input"
	"shipjoy/server/domain"
)

// maxTickDelta は1ティックで進める時間の上限です。停止からの復帰で機体が飛ばないようにします。
const maxTickDelta = 100 * time.Millisecond

// consoleSession はコンソール1つが報告中の入力です。切断時に解放します。
type consoleSession struct {
	keys     map[input.KeyCode]struct{}
	gamepads map[int]struct{}
}

func newConsoleSession() *consoleSession {
	return &consoleSession{
		keys:     make(map[input.KeyCode]struct{}),
		gamepads: make(map[int]struct{}),
	}
}

// Outbox はルームの個別送信キューです。*domain.Room が満たします。
type Outbox interface {
	EnqueueSendTo(ctx context.Context, sessionID domain.SessionID, data []byte) error
}

// ConsoleStatus はヘルスチェック向けの直近ティックの要約です。
type ConsoleStatus struct {
	Phase    string `json:"phase"`
	Consoles int    `json:"consoles"`
	Players  int    `json:"players"`
	Seq      uint16 `json:"seq"`
}

// ConsoleApplication はブラウザ (コンソール) を入力デバイス兼レンダラーとして扱う Application です。
// コンソールから生のキー/ゲームパッド入力を受け取り、毎ティックのフレームを配信します。
// 複数のコンソールの入力は1つのレジストリに合流し、キーとゲームパッドは報告中のコンソールが
// 1つでも残っている間は押下/接続のままです。
type ConsoleApplication struct {
	game     *Game
	clock    Clock
	outbox   Outbox
	nominal  time.Duration
	lastTick time.Time
	seq      uint16
	sessions map[domain.SessionID]*consoleSession
	status   atomic.Pointer[ConsoleStatus]
}

type ConsoleOption func(*ConsoleApplication)

func WithClock(c Clock) ConsoleOption {
	return func(app *ConsoleApplication) {
		app.clock = c
	}
}

func NewConsoleApplication(game *Game, opts ...ConsoleOption) *ConsoleApplication {
	app := &ConsoleApplication{
		game:     game,
		clock:    SystemClock(),
		nominal:  time.Second / time.Duration(game.cfg.TickRate),
		sessions: make(map[domain.SessionID]*consoleSession),
	}
	for _, opt := range opts {
		opt(app)
	}
	app.publishStatus(len(game.Frame().Players))
	return app
}

// SetOutbox はルームの送信キューを設定します。ルームの生成後、Run の前に呼びます。
func (app *ConsoleApplication) SetOutbox(out Outbox) {
	app.outbox = out
}

func (app *ConsoleApplication) Game() *Game {
	return app.game
}

// Status は直近のティック時点の要約を返します。どのゴルーチンからも呼べます。
func (app *ConsoleApplication) Status() ConsoleStatus {
	return *app.status.Load()
}

func (app *ConsoleApplication) publishStatus(players int) {
	app.status.Store(&ConsoleStatus{
		Phase:    app.game.Phase().String(),
		Consoles: len(app.sessions),
		Players:  players,
		Seq:      app.seq,
	})
}

// Attach は新しいコンソールに現在のフレームを送り、次のブロードキャストを待たずに描画できるようにします。
func (app *ConsoleApplication) Attach(ctx context.Context, sessionID domain.SessionID) {
	if _, ok := app.sessions[sessionID]; ok {
		return
	}
	app.sessions[sessionID] = newConsoleSession()
	frame := app.game.Frame()
	app.enqueue(ctx, sessionID, app.encodeFrame(frame))
	app.publishStatus(len(frame.Players))
	slog.InfoContext(ctx, "console attached", "sessionID", sessionID, "consoles", len(app.sessions))
}

// Detach はコンソールが押していたキーを離し、報告していたゲームパッドを切断扱いにします。
// 他のコンソールが押している/報告しているものはそのままです。
// スロットの削除は通常どおり次の PollFrame で確定します。
func (app *ConsoleApplication) Detach(ctx context.Context, sessionID domain.SessionID) {
	cs, ok := app.sessions[sessionID]
	if !ok {
		return
	}
	delete(app.sessions, sessionID)

	registry := app.game.Registry()
	for code := range cs.keys {
		if app.keyHeldElsewhere(code) {
			continue
		}
		if err := registry.KeyUp(code); err != nil {
			slog.WarnContext(ctx, "failed to release key", "sessionID", sessionID, "code", code, "error", err)
		}
	}
	for index := range cs.gamepads {
		if app.gamepadReportedElsewhere(index) {
			continue
		}
		if err := registry.SetGamepad(index, input.GamepadSnapshot{}); err != nil {
			slog.WarnContext(ctx, "failed to disconnect gamepad", "sessionID", sessionID, "index", index, "error", err)
		}
	}
	app.publishStatus(app.Status().Players)
	slog.InfoContext(ctx, "console detached", "sessionID", sessionID, "consoles", len(app.sessions))
}

func (app *ConsoleApplication) keyHeldElsewhere(code input.KeyCode) bool {
	for _, cs := range app.sessions {
		if _, ok := cs.keys[code]; ok {
			return true
		}
	}
	return false
}

func (app *ConsoleApplication) gamepadReportedElsewhere(index int) bool {
	for _, cs := range app.sessions {
		if _, ok := cs.gamepads[index]; ok {
			return true
		}
	}
	return false
}

// HandleMessage は入力を処理します。処理できなかった入力は送り主に Error 制御メッセージで知らせます。
func (app *ConsoleApplication) HandleMessage(ctx context.Context, sessionID domain.SessionID, data []byte) error {
	err := app.handleMessage(ctx, sessionID, data)
	if err != nil {
		app.enqueue(ctx, sessionID, domain.EncodeErrorMessage(sessionID, err.Error()))
	}
	return err
}

func (app *ConsoleApplication) handleMessage(ctx context.Context, sessionID domain.SessionID, data []byte) error {
	cs, ok := app.sessions[sessionID]
	if !ok {
		slog.DebugContext(ctx, "input from detached console dropped", "sessionID", sessionID)
		return nil
	}

	env, err := domain.ParseEnvelope(data)
	if err != nil {
		return err
	}

	switch env.PayloadHeader.DataType {
	case domain.DataTypeInput:
		return app.handleInput(ctx, cs, env)
	case domain.DataTypeControl:
		return app.handleControl(ctx, sessionID, env)
	default:
		slog.WarnContext(ctx, "unknown data type", "dataType", env.PayloadHeader.DataType)
		return nil
	}
}

func (app *ConsoleApplication) enqueue(ctx context.Context, sessionID domain.SessionID, data []byte) {
	if app.outbox == nil {
		return
	}
	if err := app.outbox.EnqueueSendTo(ctx, sessionID, data); err != nil {
		slog.WarnContext(ctx, "failed to enqueue message", "sessionID", sessionID, "error", err)
	}
}

func (app *ConsoleApplication) handleInput(ctx context.Context, cs *consoleSession, env *domain.Envelope) error {
	registry := app.game.Registry()

	switch domain.InputSubType(env.PayloadHeader.SubType) {
	case domain.InputSubTypeKeyDown, domain.InputSubTypeKeyUp:
		key, err := domain.ParseKeyPayload(env.Payload)
		if err != nil {
			return err
		}
		code := input.KeyCode(key.Code)
		if !input.IsKnownKey(code) {
			// 割り当てのないキーは無視する
			return nil
		}
		if domain.InputSubType(env.PayloadHeader.SubType) == domain.InputSubTypeKeyDown {
			cs.keys[code] = struct{}{}
			return registry.KeyDown(code)
		}
		delete(cs.keys, code)
		if app.keyHeldElsewhere(code) {
			return nil
		}
		return registry.KeyUp(code)

	case domain.InputSubTypeGamepad:
		pad, err := domain.ParseGamepadPayload(env.Payload)
		if err != nil {
			return err
		}
		index := int(pad.Index)
		if index >= input.MaxGamepads {
			return fmt.Errorf("%w: gamepad %d", input.ErrUnknownSlot, index)
		}
		if pad.Connected {
			cs.gamepads[index] = struct{}{}
			return registry.SetGamepad(index, SnapshotFromPayload(pad))
		}
		delete(cs.gamepads, index)
		if app.gamepadReportedElsewhere(index) {
			return nil
		}
		return registry.SetGamepad(index, input.GamepadSnapshot{})

	default:
		slog.WarnContext(ctx, "unknown input subtype", "subType", env.PayloadHeader.SubType)
		return nil
	}
}

func (app *ConsoleApplication) handleControl(ctx context.Context, sessionID domain.SessionID, env *domain.Envelope) error {
	switch domain.ControlSubType(env.PayloadHeader.SubType) {
	case domain.ControlSubTypeResize:
		size, err := domain.ParseResizePayload(env.Payload)
		if err != nil {
			return err
		}
		if err := app.game.SetArena(float64(size.Width), float64(size.Height)); err != nil {
			return err
		}
		slog.DebugContext(ctx, "handleControl:resize", "sessionID", sessionID, "width", size.Width, "height", size.Height)
	default:
		slog.WarnContext(ctx, "unknown control subtype", "subType", env.PayloadHeader.SubType)
	}
	return nil
}

// Tick は前回からの経過時間だけゲームを進め、フレームメッセージを返します。
func (app *ConsoleApplication) Tick(ctx context.Context) []byte {
	now := app.clock.Now()
	elapsed := app.nominal
	if !app.lastTick.IsZero() {
		elapsed = min(max(app.clock.Since(app.lastTick), 0), maxTickDelta)
	}
	app.lastTick = now

	app.game.Step(ctx, elapsed.Seconds())

	app.seq++
	frame := app.game.Frame()
	app.publishStatus(len(frame.Players))
	return app.encodeFrame(frame)
}

func (app *ConsoleApplication) encodeFrame(frame Frame) []byte {
	return domain.EncodeMessage(domain.SessionID{}, app.seq, domain.DataTypeFrame, 0, frame.Payload().Encode())
}

// SnapshotFromPayload はワイヤー上のゲームパッド状態を正規化前のスナップショットに変換します。
func SnapshotFromPayload(p *domain.GamepadPayload) input.GamepadSnapshot {
	if !p.Connected {
		return input.GamepadSnapshot{}
	}
	s := input.GamepadSnapshot{
		Connected: true,
		Axes:      make([]float64, len(p.Axes)),
		Buttons:   make([]input.ButtonSample, len(p.Buttons)),
	}
	for i, a := range p.Axes {
		s.Axes[i] = float64(a)
	}
	for i, b := range p.Buttons {
		s.Buttons[i] = input.ButtonSample{Pressed: b.Pressed, Value: float64(b.Value)}
	}
	return s
}

// PayloadFromSnapshot はスナップショットをワイヤー上のゲームパッド状態に変換します。
func PayloadFromSnapshot(index int, s input.GamepadSnapshot) *domain.GamepadPayload {
	p := &domain.GamepadPayload{
		Index:     uint8(index),
		Connected: s.Connected,
		Axes:      make([]float32, len(s.Axes)),
		Buttons:   make([]domain.GamepadButtonState, len(s.Buttons)),
	}
	for i, a := range s.Axes {
		p.Axes[i] = float32(a)
	}
	for i, b := range s.Buttons {
		p.Buttons[i] = domain.GamepadButtonState{Pressed: b.Pressed, Value: float32(b.Value)}
	}
	return p
}
