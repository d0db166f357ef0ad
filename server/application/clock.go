package application

import "time"

// Clock はティック間の経過時間を測るための時計です。テストでは差し替えます。
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type systemClock struct{}

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }

// SystemClock は実時間の Clock を返します。
func SystemClock() Clock {
	return systemClock{}
}
