package utils

import (
	"math"

	"shipjoy/server/domain"
)

// FiniteVec はベクトルの両成分が有限値であるかを返します。
func FiniteVec(v domain.Vec2) bool {
	return IsFinite(v.X) && IsFinite(v.Y)
}

func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
