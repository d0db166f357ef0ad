package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"shipjoy/server/application"
	"shipjoy/server/application/input"
	"shipjoy/server/domain"
	"shipjoy/utils"
)

func main() {
	if err := utils.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: utils.ParseLogLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := utils.GetEnvDefault("ADDR", "localhost")
	port := utils.GetEnvDefault("PORT", "9090")
	botCountStr := utils.GetEnvDefault("BOT_COUNT", "3")
	botCount, err := strconv.Atoi(botCountStr)
	if err != nil || botCount < 1 || botCount > input.MaxGamepads {
		slog.Error("invalid BOT_COUNT", "value", botCountStr, "max", input.MaxGamepads)
		os.Exit(1)
	}

	serverURL := fmt.Sprintf("ws://%s:%s/ws", addr, port)
	slog.Info("starting bots", "count", botCount, "server", serverURL)

	var wg sync.WaitGroup
	for i := range botCount {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			runBot(ctx, serverURL, index)
		}(i)
	}

	wg.Wait()
	slog.Info("all bots stopped")
}

// runBot はゲームパッド index として振る舞うボットを、切断されても再接続しながら動かします。
func runBot(ctx context.Context, serverURL string, index int) {
	logger := slog.With("botID", index)

	for {
		if ctx.Err() != nil {
			return
		}
		err := botSession(ctx, serverURL, index, logger)
		if err != nil && ctx.Err() == nil {
			logger.Warn("bot session ended, reconnecting", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}
}

// botState は受信ループと判断ループで共有する状態です。
type botState struct {
	mu        sync.Mutex
	sessionID domain.SessionID
	joined    bool
	frame     *domain.FramePayload
}

func botSession(ctx context.Context, serverURL string, index int, logger *slog.Logger) error {
	conn, _, err := websocket.Dial(ctx, serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	logger.Info("connected")

	var (
		state  botState
		seqMu  sync.Mutex
		seq    uint16
		slot   = input.Gamepad(index)
		client = application.NewRuleBotController(nil)
	)

	write := func(ctx context.Context, dataType domain.DataType, subType uint8, payload []byte) error {
		seqMu.Lock()
		seq++
		s := seq
		seqMu.Unlock()

		state.mu.Lock()
		sessionID := state.sessionID
		state.mu.Unlock()
		return conn.Write(ctx, websocket.MessageBinary, domain.EncodeMessage(sessionID, s, dataType, subType, payload))
	}

	eg, ctx := errgroup.WithContext(ctx)

	// 受信ループ
	eg.Go(func() error {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			env, err := domain.ParseEnvelope(data)
			if err != nil {
				continue
			}

			switch env.PayloadHeader.DataType {
			case domain.DataTypeControl:
				switch domain.ControlSubType(env.PayloadHeader.SubType) {
				case domain.ControlSubTypeAssign:
					sessionID := domain.SessionIDFromBytes(env.Header.SessionID)
					state.mu.Lock()
					state.sessionID = sessionID
					state.mu.Unlock()
					logger.Info("session assigned", "sessionID", sessionID)

					if err := write(ctx, domain.DataTypeControl, uint8(domain.ControlSubTypeJoin), (&domain.JoinPayload{}).Encode()); err != nil {
						return fmt.Errorf("send join: %w", err)
					}
					state.mu.Lock()
					state.joined = true
					state.mu.Unlock()
					logger.Info("joined room")

				case domain.ControlSubTypePing:
					if err := write(ctx, domain.DataTypeControl, uint8(domain.ControlSubTypePong), nil); err != nil {
						return fmt.Errorf("send pong: %w", err)
					}

				case domain.ControlSubTypeError:
					if p, err := domain.ParseErrorPayload(env.Payload); err == nil {
						logger.Warn("input rejected", "reason", p.Reason)
					}
				}

			case domain.DataTypeFrame:
				frame, err := domain.ParseFramePayload(env.Payload)
				if err != nil {
					logger.Debug("failed to parse frame", "err", err)
					continue
				}
				state.mu.Lock()
				state.frame = frame
				state.mu.Unlock()
			}
		}
	})

	// 判断・送信ループ (60FPS相当)
	eg.Go(func() error {
		ticker := time.NewTicker(time.Second / 60)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "shutdown")
				return nil
			case <-ticker.C:
				state.mu.Lock()
				joined, frame := state.joined, state.frame
				state.mu.Unlock()
				if !joined || frame == nil {
					continue
				}

				action := client.Decide(application.FindPlayer(frame, slot), frame)
				payload := application.PayloadFromSnapshot(index, action.Snapshot())
				if err := write(ctx, domain.DataTypeInput, uint8(domain.InputSubTypeGamepad), payload.Encode()); err != nil {
					return fmt.Errorf("write: %w", err)
				}
			}
		}
	})

	return eg.Wait()
}
