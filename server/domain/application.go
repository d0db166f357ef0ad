package domain

import "context"

//go:generate go tool mockgen -destination=./mocks/application_mock.go -package=mocks . Application

// Application はルームが駆動するゲームロジックの境界です。
// メソッドはすべてルームのゴルーチンから呼ばれます。
type Application interface {
	// Attach はセッションがルームに参加したときに呼ばれます。
	Attach(ctx context.Context, sessionID SessionID)
	// Detach はセッションがルームを離れたときに呼ばれます。
	Detach(ctx context.Context, sessionID SessionID)
	// HandleMessage はセッションから届いたデータメッセージを処理します。
	HandleMessage(ctx context.Context, sessionID SessionID, data []byte) error
	// Tick は1フレーム進め、ブロードキャストするデータを返します。nil なら送信しません。
	Tick(ctx context.Context) []byte
}

// Sender はセッションへの送信口です。
type Sender interface {
	Send(data []byte) error
}
