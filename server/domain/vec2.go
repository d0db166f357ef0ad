package domain

import "math"

// Vec2 はシミュレーションで使う2次元ベクトルです。ワイヤ上では Position2D (float32) に変換します。
type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vec2) Scale(k float64) Vec2 {
	return Vec2{X: v.X * k, Y: v.Y * k}
}

func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// ClampUnit は長さが1を超える場合に単位円上へ縮めます。方向は維持されます。
func (v Vec2) ClampUnit() Vec2 {
	l := v.Len()
	if l > 1 {
		return Vec2{X: v.X / l, Y: v.Y / l}
	}
	return v
}

// ToPosition2D はワイヤ表現に変換します。
func (v Vec2) ToPosition2D() Position2D {
	return Position2D{X: float32(v.X), Y: float32(v.Y)}
}
