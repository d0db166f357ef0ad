package domain

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrBackpressure は書き込みチャネルが満杯の場合に返されるエラーです。
	ErrBackpressure = errors.New("write channel is full, apply backpressure")
	// ErrInitializationFailed はセッションエンドポイントの初期化に失敗した場合に返されるエラーです。
	ErrInitializationFailed = errors.New("failed to initialize session endpoint")
	// ErrEndpointClosed はクローズ済みのエンドポイントへ送信した場合に返されるエラーです。
	ErrEndpointClosed = errors.New("session endpoint closed")
)

const (
	DefaultIdleTimeout  = 30 * time.Second
	DefaultPingInterval = 5 * time.Second
)

// SessionEndpoint は1セッション分の読み書きとルームへの中継を担当します。
type SessionEndpoint struct {
	ctx    context.Context
	cancel context.CancelFunc

	session     *Session
	connection  *Connection
	pubsub      PubSub
	roomManager RoomManager
	roomID      RoomID // ownerLoop 以外からは触らない

	pingInterval time.Duration
	idleTimeout  time.Duration

	ctrlCh  chan endpointEvent // 制御用チャネル
	writeCh chan []byte        // 書き込み用チャネル
	dataCh  chan []byte        // 読み取ったメッセージを ownerLoop に渡す

	// lifecycle
	closed atomic.Bool
}

// EndpointOption は SessionEndpoint の設定を上書きします。
type EndpointOption func(*SessionEndpoint)

func WithPingInterval(d time.Duration) EndpointOption {
	return func(se *SessionEndpoint) { se.pingInterval = d }
}

func WithIdleTimeout(d time.Duration) EndpointOption {
	return func(se *SessionEndpoint) { se.idleTimeout = d }
}

func NewSessionEndpoint(ctx context.Context, session *Session, connection *Connection, pubsub PubSub, roomManager RoomManager, opts ...EndpointOption) (*SessionEndpoint, error) {
	if session == nil || connection == nil || pubsub == nil || roomManager == nil {
		return nil, ErrInitializationFailed
	}
	ctx, cancel := context.WithCancel(ctx)
	se := &SessionEndpoint{
		ctx:          ctx,
		cancel:       cancel,
		session:      session,
		connection:   connection,
		pubsub:       pubsub,
		roomManager:  roomManager,
		pingInterval: DefaultPingInterval,
		idleTimeout:  DefaultIdleTimeout,
		ctrlCh:       make(chan endpointEvent, 16),
		writeCh:      make(chan []byte, 1024),
		dataCh:       make(chan []byte, 256),
	}
	for _, opt := range opts {
		opt(se)
	}
	return se, nil
}

// Run は接続が閉じられるまでブロックします。
func (se *SessionEndpoint) Run() error {
	msgCh := se.pubsub.Subscribe(SessionTopic(se.session.ID()))
	defer se.pubsub.Unsubscribe(SessionTopic(se.session.ID()), msgCh)

	// セッションID通知を送信
	if err := se.Send(EncodeAssignMessage(se.session.ID())); err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(se.ctx)
	eg.Go(func() error {
		se.ownerLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		se.readLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		se.writeLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		se.subscribeLoop(ctx, msgCh)
		return nil
	})
	return eg.Wait()
}

func (se *SessionEndpoint) Send(data []byte) error {
	if se.closed.Load() {
		return ErrEndpointClosed
	}
	select {
	case se.writeCh <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (se *SessionEndpoint) Close(ctx context.Context) {
	se.sendCtrlEvent(ctx, endpointEvent{kind: evClose})
}

// ownerLoop は論理セッションの状態を所有し、制御イベントと受信データを直列に処理します。
// pingInterval ごとに ping を送り、pong と受信が途絶えたセッションを閉じます。
func (se *SessionEndpoint) ownerLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	var pingC <-chan time.Time
	if se.pingInterval > 0 {
		pingTicker := time.NewTicker(se.pingInterval)
		defer pingTicker.Stop()
		pingC = pingTicker.C
	}
	for {
		select {
		case <-ctx.Done():
			se.leaveRoom(context.WithoutCancel(ctx))
			return
		case ev := <-se.ctrlCh:
			se.handleControlEvent(ctx, ev)
		case data := <-se.dataCh:
			se.handleData(ctx, data)
		case <-pingC:
			se.ping(ctx)
		case <-ticker.C:
			if idle, reason := se.session.IsIdle(se.idleTimeout); idle {
				slog.InfoContext(ctx, "session idle, closing", "sessionID", se.session.ID(), "reason", reason)
				se.handleControlEvent(ctx, endpointEvent{kind: evClose, err: errors.New(reason.String())})
			}
		}
	}
}

func (se *SessionEndpoint) ping(ctx context.Context) {
	if err := se.Send(EncodePingMessage(se.session.ID())); err != nil {
		slog.WarnContext(ctx, "ping dropped", "sessionID", se.session.ID(), "err", err)
		return
	}
	slog.DebugContext(ctx, "ping sent", "sessionID", se.session.ID())
}

func (se *SessionEndpoint) readLoop(ctx context.Context) {
	for {
		data, err := se.connection.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				se.sendCtrlEvent(ctx, endpointEvent{kind: evReadError, err: err})
			}
			return
		}
		se.session.TouchRead()
		select {
		case se.dataCh <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (se *SessionEndpoint) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-se.writeCh:
			if err := se.connection.Write(ctx, data); err != nil {
				if ctx.Err() == nil {
					se.sendCtrlEvent(ctx, endpointEvent{kind: evWriteError, err: err})
				}
				return
			}
			se.session.TouchWrite()
		}
	}
}

// subscribeLoop はpubsubからのメッセージをwriteChに転送します。
func (se *SessionEndpoint) subscribeLoop(ctx context.Context, msgCh <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			select {
			case se.writeCh <- msg.Data:
			default:
				slog.WarnContext(ctx, "subscribeLoop: writeCh full, message dropped", "sessionID", se.session.ID())
			}
		}
	}
}

func (se *SessionEndpoint) close() {
	if !se.closed.CompareAndSwap(false, true) {
		return
	}
	se.cancel()
	se.session.Close()
	se.connection.Close()
}

func (se *SessionEndpoint) handleData(ctx context.Context, data []byte) {
	env, err := ParseEnvelope(data)
	if err != nil {
		slog.WarnContext(ctx, "failed to parse message", "sessionID", se.session.ID(), "err", err)
		return
	}
	if env.Header.SessionID != se.session.ID().Bytes() {
		slog.WarnContext(ctx, "session ID mismatch", "expected", se.session.ID(), "got", SessionIDFromBytes(env.Header.SessionID))
		return
	}

	switch env.PayloadHeader.DataType {
	case DataTypeControl:
		se.handleControlMessage(ctx, ControlSubType(env.PayloadHeader.SubType), env, data)
	case DataTypeInput:
		se.forwardToRoom(ctx, data)
	default:
		slog.WarnContext(ctx, "unknown data type", "sessionID", se.session.ID(), "dataType", env.PayloadHeader.DataType)
	}
}

func (se *SessionEndpoint) forwardToRoom(ctx context.Context, data []byte) {
	if se.roomID.IsEmpty() {
		slog.WarnContext(ctx, "received data message before joining a room", "sessionID", se.session.ID())
		return
	}
	se.pubsub.Publish(ctx, RoomTopic(se.roomID), Message{SessionID: se.session.ID(), Data: data})
}

func (se *SessionEndpoint) handleControlMessage(ctx context.Context, subType ControlSubType, env *Envelope, data []byte) {
	switch subType {
	case ControlSubTypeJoin:
		if !se.roomID.IsEmpty() {
			slog.DebugContext(ctx, "session already in room", "sessionID", se.session.ID(), "roomID", se.roomID)
			return
		}
		payload, err := ParseJoinPayload(env.Payload)
		if err != nil {
			slog.WarnContext(ctx, "failed to parse join message", "err", err)
			return
		}
		roomID := payload.RoomID
		if roomID.IsEmpty() {
			roomID, err = se.roomManager.GetRoom(ctx, se.session.ID())
			if err != nil {
				slog.ErrorContext(ctx, "failed to get default room", "err", err)
				return
			}
			slog.DebugContext(ctx, "auto-assigned room", "sessionID", se.session.ID(), "roomID", roomID)
		}
		se.roomID = roomID
		se.pubsub.Publish(ctx, RoomCtrlTopic(se.roomID), Message{SessionID: se.session.ID(), Data: data})
		slog.InfoContext(ctx, "session joined room", "sessionID", se.session.ID(), "roomID", se.roomID)
	case ControlSubTypeLeave:
		if se.roomID.IsEmpty() {
			slog.WarnContext(ctx, "session not in any room, cannot leave", "sessionID", se.session.ID())
			return
		}
		se.leaveRoom(ctx)
	case ControlSubTypePong:
		se.handleControlEvent(ctx, endpointEvent{kind: evPong})
	case ControlSubTypeResize:
		se.forwardToRoom(ctx, data)
	default:
		slog.DebugContext(ctx, "ignored control message", "sessionID", se.session.ID(), "subType", subType)
	}
}

// leaveRoom はルームにLeaveを通知します。未参加なら何もしません。
func (se *SessionEndpoint) leaveRoom(ctx context.Context) {
	if se.roomID.IsEmpty() {
		return
	}
	se.pubsub.Publish(ctx, RoomCtrlTopic(se.roomID), Message{
		SessionID: se.session.ID(),
		Data:      EncodeLeaveMessage(se.session.ID()),
	})
	slog.InfoContext(ctx, "session left room", "sessionID", se.session.ID(), "roomID", se.roomID)
	se.roomID = ""
}

// handleControlEvent は制御イベントを処理し論理セッションの状態を更新する唯一の関数です。
func (se *SessionEndpoint) handleControlEvent(ctx context.Context, ev endpointEvent) {
	switch ev.kind {
	case evClose:
		se.close()
	case evPong:
		se.session.TouchPong()
	case evReadError, evWriteError:
		slog.DebugContext(ctx, "connection error, closing", "sessionID", se.session.ID(), "kind", ev.kind, "err", ev.err)
		se.close()
	default:
		slog.WarnContext(ctx, "unknown endpoint event kind", "kind", ev.kind)
	}
}

func (se *SessionEndpoint) sendCtrlEvent(ctx context.Context, ev endpointEvent) {
	select {
	case se.ctrlCh <- ev:
	case <-ctx.Done():
	}
}
