package domain

import (
	"context"
	"errors"
)

//go:generate go tool mockgen -destination=./mocks/room_manager_mock.go -package=mocks . RoomManager

var ErrNoRoom = errors.New("no room available")

// RoomID はルームの識別子です。
type RoomID string

func (id RoomID) String() string { return string(id) }
func (id RoomID) IsEmpty() bool  { return id == "" }

// RoomManager はセッションの参加先ルームを決定します。
type RoomManager interface {
	GetRoom(ctx context.Context, sessionID SessionID) (RoomID, error)
}

// SimpleRoomManager は全セッションを単一のデフォルトルームへ割り当てます。
// 1台のコンソールにつき1ルームで、ローカルマルチプレイの前提と一致します。
type SimpleRoomManager struct {
	defaultRoom RoomID
}

var _ RoomManager = (*SimpleRoomManager)(nil)

func NewSimpleRoomManager(defaultRoom RoomID) *SimpleRoomManager {
	return &SimpleRoomManager{defaultRoom: defaultRoom}
}

func (m *SimpleRoomManager) GetRoom(ctx context.Context, sessionID SessionID) (RoomID, error) {
	if m.defaultRoom.IsEmpty() {
		return "", ErrNoRoom
	}
	return m.defaultRoom, nil
}
