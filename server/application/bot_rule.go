package application

import (
	"math"
	"math/rand/v2"

	"shipjoy/server/domain"
)

const (
	botNoiseAngle float64 = 0.52 // ±30度 (π/6 ≈ 0.52 rad)
	rushChance    float64 = 0.02 // 毎tick 2% の確率で突撃
)

// RuleBotController はルールベースのボットAIです。
// ロビーではプライマリを押して参加、確保、準備完了まで進み、飛行中は最寄りの機体を追いかけます。
// ボットごとに異なる個性パラメータを持ちます。
type RuleBotController struct {
	CloseRange   float64 // 後退を始める距離 (px)
	AimTolerance float64 // 推進する向きのずれの許容 (rad)
	Noise        float64 // 狙う向きに加えるノイズの幅 (rad)
	RushChance   float64

	rng  *rand.Rand
	tick uint64
}

// NewRuleBotController はランダムな個性を持つボットAIを生成します。
func NewRuleBotController(rng *rand.Rand) *RuleBotController {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RuleBotController{
		CloseRange:   120 + rng.Float64()*120, // 120〜240
		AimTolerance: 0.3 + rng.Float64()*0.3, // 0.3〜0.6
		Noise:        botNoiseAngle,
		RushChance:   rushChance,
		rng:          rng,
	}
}

func (r *RuleBotController) Decide(self *domain.PlayerFrame, frame *domain.FramePayload) BotAction {
	r.tick++
	if frame == nil {
		return BotAction{}
	}

	switch Phase(frame.Phase) {
	case PhaseLobby:
		return r.decideLobby(self)
	case PhaseFlight:
		return r.decideFlight(self, frame)
	default:
		return BotAction{}
	}
}

// decideLobby は Ready になるまでプライマリを押しては離します。
func (r *RuleBotController) decideLobby(self *domain.PlayerFrame) BotAction {
	if self != nil && VisualMode(self.Mode) == ModeReady {
		return BotAction{}
	}
	return BotAction{Primary: r.tick%2 == 0}
}

func (r *RuleBotController) decideFlight(self *domain.PlayerFrame, frame *domain.FramePayload) BotAction {
	if self == nil || VisualMode(self.Mode) != ModeFlying {
		return BotAction{}
	}

	target := r.findNearest(self, frame.Players)
	if target == nil {
		return BotAction{}
	}

	d := target.Position.Vec2().Sub(self.Position.Vec2())
	dist := d.Len()
	if dist < 0.001 {
		return BotAction{}
	}

	// 0 が上向き、時計回りが正
	desired := math.Atan2(d.X, -d.Y) + r.noise()
	heading := float64(self.Heading) * math.Pi / 180
	diff := normalizeAngle(desired - heading)

	var stick domain.Vec2
	switch {
	case diff > r.AimTolerance/2:
		stick.X = 1
	case diff < -r.AimTolerance/2:
		stick.X = -1
	}

	switch {
	case r.RushChance > 0 && r.rng.Float64() < r.RushChance:
		// ランダム突撃: 向きに関係なく推進
		stick.Y = -1
	case dist < r.CloseRange:
		stick.Y = 1
	case math.Abs(diff) < r.AimTolerance:
		stick.Y = -1
	}

	return BotAction{Stick: stick}
}

// findNearest は自分以外で最寄りの飛行中の機体を探します。
func (r *RuleBotController) findNearest(self *domain.PlayerFrame, players []domain.PlayerFrame) *domain.PlayerFrame {
	var nearest *domain.PlayerFrame
	nearestDist := math.MaxFloat64

	for i := range players {
		other := &players[i]
		if other.Slot == self.Slot || VisualMode(other.Mode) != ModeFlying {
			continue
		}
		dist := other.Position.Vec2().Sub(self.Position.Vec2()).Len()
		if dist < nearestDist {
			nearestDist = dist
			nearest = other
		}
	}
	return nearest
}

// noise は狙う向きに ±Noise のランダムノイズを返します。
func (r *RuleBotController) noise() float64 {
	if r.Noise <= 0 {
		return 0
	}
	return (r.rng.Float64()*2 - 1) * r.Noise
}

// normalizeAngle は角度を [-π, π) に収めます。
func normalizeAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	if a >= 2*math.Pi {
		a = 0
	}
	return a - math.Pi
}
