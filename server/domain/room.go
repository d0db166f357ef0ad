package domain

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrRoomBusy = errors.New("room send channel is full")

const DefaultTickRate = 60

type Room struct {
	ID       RoomID
	sessions map[SessionID]struct{}

	pubsub      PubSub
	application Application

	sendCh chan roomSend

	tickInterval time.Duration
}

type roomSend struct {
	sessionID SessionID
	data      []byte
}

type RoomOption func(*Room)

// WithTickRate はティックレート (Hz) を指定します。0以下は無視します。
func WithTickRate(hz int) RoomOption {
	return func(r *Room) {
		if hz > 0 {
			r.tickInterval = time.Second / time.Duration(hz)
		}
	}
}

func NewRoom(id RoomID, pubsub PubSub, application Application, opts ...RoomOption) *Room {
	r := &Room{
		ID:           id,
		sessions:     make(map[SessionID]struct{}),
		pubsub:       pubsub,
		application:  application,
		sendCh:       make(chan roomSend, 1024),
		tickInterval: time.Second / DefaultTickRate,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TickInterval はシミュレーション1ステップの長さです。
func (r *Room) TickInterval() time.Duration {
	return r.tickInterval
}

func (r *Room) Broadcast(ctx context.Context, data []byte) {
	for sessionID := range r.sessions {
		r.pubsub.Publish(ctx, SessionTopic(sessionID), Message{Data: data})
	}
}

func (r *Room) SendTo(ctx context.Context, sessionID SessionID, data []byte) {
	r.pubsub.Publish(ctx, SessionTopic(sessionID), Message{Data: data})
}

// EnqueueSendTo は1セッション宛ての送信を積みます。同じフレームの Tick より前に送られます。
// ルームのゴルーチン (Application のメソッド内) から呼びます。
func (r *Room) EnqueueSendTo(ctx context.Context, sessionID SessionID, data []byte) error {
	select {
	case <-ctx.Done():
		return nil
	case r.sendCh <- roomSend{sessionID: sessionID, data: data}:
		return nil
	default:
		return ErrRoomBusy
	}
}

// Run はtickIntervalごとに 制御 → 受信 → 送信 → Tick の順で1フレームを処理します。
func (r *Room) Run(ctx context.Context) error {
	msgCh := r.pubsub.Subscribe(RoomTopic(r.ID))
	defer r.pubsub.Unsubscribe(RoomTopic(r.ID), msgCh)

	ctrlCh := r.pubsub.Subscribe(RoomCtrlTopic(r.ID))
	defer r.pubsub.Unsubscribe(RoomCtrlTopic(r.ID), ctrlCh)

	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "room started", "roomID", r.ID, "tickInterval", r.tickInterval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.step(ctx, ctrlCh, msgCh)
		}
	}
}

func (r *Room) step(ctx context.Context, ctrlCh, msgCh <-chan Message) {
CTRL_LOOP:
	for {
		select {
		case ctrl := <-ctrlCh:
			r.handleControlMessage(ctx, ctrl)
		default:
			break CTRL_LOOP
		}
	}
RECEIVE_LOOP:
	for {
		select {
		case msg := <-msgCh:
			// Leave 済みのセッションが切断直前に送ったデータは捨てる
			if _, ok := r.sessions[msg.SessionID]; !ok {
				slog.DebugContext(ctx, "room: data from detached session dropped", "sessionID", msg.SessionID)
				continue
			}
			if err := r.application.HandleMessage(ctx, msg.SessionID, msg.Data); err != nil {
				slog.WarnContext(ctx, "room handle message failed", "sessionID", msg.SessionID, "err", err)
			}
		default:
			break RECEIVE_LOOP
		}
	}
	// 制御と受信の処理中にアプリケーションが積んだ送信
SEND_LOOP:
	for {
		select {
		case msg := <-r.sendCh:
			if _, ok := r.sessions[msg.sessionID]; ok {
				r.SendTo(ctx, msg.sessionID, msg.data)
			}
		default:
			break SEND_LOOP
		}
	}
	if data := r.application.Tick(ctx); data != nil {
		r.Broadcast(ctx, data)
	}
}

// handleControlMessage はjoin/leave制御メッセージを処理します。
func (r *Room) handleControlMessage(ctx context.Context, msg Message) {
	env, err := ParseEnvelope(msg.Data)
	if err != nil || env.PayloadHeader.DataType != DataTypeControl {
		slog.WarnContext(ctx, "room: malformed control message", "sessionID", msg.SessionID, "err", err)
		return
	}
	switch ControlSubType(env.PayloadHeader.SubType) {
	case ControlSubTypeJoin:
		if _, ok := r.sessions[msg.SessionID]; ok {
			return
		}
		r.sessions[msg.SessionID] = struct{}{}
		r.application.Attach(ctx, msg.SessionID)
		slog.InfoContext(ctx, "room: session attached", "roomID", r.ID, "sessionID", msg.SessionID, "sessions", len(r.sessions))
	case ControlSubTypeLeave:
		if _, ok := r.sessions[msg.SessionID]; !ok {
			return
		}
		delete(r.sessions, msg.SessionID)
		r.application.Detach(ctx, msg.SessionID)
		slog.InfoContext(ctx, "room: session detached", "roomID", r.ID, "sessionID", msg.SessionID, "sessions", len(r.sessions))
	default:
	}
}
