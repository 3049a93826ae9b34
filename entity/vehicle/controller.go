package vehicle

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity/vehicle/route"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/config"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/snapshot"
)

const (
	// 减速所需距离超过全程时，过了全程的这个比例就开始减速
	halfwayFraction = .5
	// slowdownMultiplier不低于该值时触发急刹
	handbrakeSlowdownMultiplier = 2
)

// IAgent 控制器所看到的车辆
// 功能：车辆属性查询与外部移动执行器（路径跟随者）的只读视图
type IAgent interface {
	ID() int32
	MoveSpeed() float64        // 期望巡航速度
	AccelerationRate() float64 // 每步加速量
	Components() []*Component  // 部件

	Moving() bool               // 是否正在沿路径行驶
	CurPath() entity.IRoute     // 当前路径，没有时为nil
	Position() entity.Cell      // 当前所在格子
	NodesLeft() int             // 当前路径上尚未进入的路点数
	NextCellCostTotal() float64 // 正在进入的格子的总代价
	NextCellCostLeft() float64  // 正在进入的格子的剩余代价
	PendingJobs() []Job         // 当前任务之后排队的任务
}

// controller 车辆速度控制器
// 功能：每步决定加速、保持或减速，使车辆沿路径到达终点时不冲过头；
// 无法及时刹停时触发急刹（音效、部件损伤、提示）
type controller struct {
	// 控制器保持的参数

	agent                  IAgent
	sink                   IEffectsSink
	cache                  *route.SubrouteCache // 排队任务的子路径缓存，每次开始行驶时清空
	decelerationMultiplier float64              // 减速相对加速的倍率
	speedFloor             float64              // 减速的目标速度
	wheelTag               string               // 急刹时受损部件的标签

	// 状态（持久化）

	currentSpeed       float64      // 当前速度
	wasMoving          bool         // 上一次更新时是否在行驶
	mode               MovementMode // 速度控制模式
	paidCost           float64      // 本次行驶已经消耗的代价
	isBraking          bool         // 是否正在急刹（驱动急刹音效）
	handbrakeApplied   bool         // 急刹已触发，速度回落到speedFloor后复位
	curFractionPassed  float64      // 已行驶代价占全程的比例
	prevFractionPassed float64      // 上一步的curFractionPassed，用于识别路径重算导致的进度倒退

	// 运行时

	ticking      bool      // 是否需要每步更新（由开始/停止行驶事件控制）
	brakingSound Sustainer // 急刹音效
}

// newController 创建速度控制器
func newController(agent IAgent, sink IEffectsSink, planner entity.IPlanner, m config.Movement) *controller {
	return &controller{
		agent:                  agent,
		sink:                   sink,
		cache:                  route.NewSubrouteCache(planner),
		decelerationMultiplier: m.DecelerationMultiplier,
		speedFloor:             m.SpeedFloor,
		wheelTag:               m.WheelTag,
		mode:                   MovementModeStarting,
	}
}

// tick 每步更新
// 功能：根据全程代价与已行驶代价决定加速或减速
// 算法说明：
// 1. 全程代价totalCost包含当前路径与排队的goto任务（每步重算，路径可能变化）
// 2. 减速区比例 decelFraction = 期望速度 / (加速度*减速倍率) / totalCost
// 3. 已行驶比例 curFractionPassed = paidCost / totalCost
// 4. decelFraction > 1（全程都不够平稳减速）：
//   - 进度倒退（路径被重算）时强制减速
//   - 否则前一半加速，之后减速
//
// 5. 否则在 1 - decelFraction 之前加速，之后减速
// 6. 一旦进入减速，本次行驶内不再加速
// 7. 维持急刹音效
// 8. 本步中止了行驶（停止事件已触发）时跳过6、7
func (c *controller) tick() {
	if !c.ticking {
		return
	}
	c.wasMoving = c.agent.Moving()
	if !c.wasMoving || c.agent.CurPath() == nil {
		c.prevFractionPassed = 0
		c.endBraking()
		return
	}

	desiredSpeed := c.agent.MoveSpeed()
	totalCost := c.totalRemainingCostWithLookahead().Cost
	decelFraction := c.decelerationFraction(desiredSpeed, totalCost)
	if totalCost > 0 {
		c.curFractionPassed = lo.Clamp(c.paidCost/totalCost, 0, 1)
	} else {
		c.curFractionPassed = 1
	}

	if decelFraction > 1 {
		if c.prevFractionPassed > c.curFractionPassed {
			c.decelerate(decelFraction, false)
		} else if c.curFractionPassed <= halfwayFraction && c.mode != MovementModeDecelerate {
			c.accelerate(desiredSpeed)
		} else {
			c.decelerate(decelFraction, false)
		}
	} else {
		if c.curFractionPassed <= 1-decelFraction && c.mode != MovementModeDecelerate {
			c.accelerate(desiredSpeed)
		} else {
			c.decelerate(decelFraction, false)
		}
	}

	// 减速时中止了行驶，停止事件已经重置了本次行驶的状态
	if !c.ticking {
		return
	}
	c.prevFractionPassed = c.curFractionPassed
	if c.isBraking && c.brakingSound != nil && !c.brakingSound.Ended() {
		c.brakingSound.Maintain()
	}
}

// decelerationFraction 需要处于减速状态的全程比例（从终点往回算）
func (c *controller) decelerationFraction(desiredSpeed, totalCost float64) float64 {
	rate := c.agent.AccelerationRate() * c.decelerationMultiplier
	if rate <= 0 || totalCost <= 0 {
		return math.Inf(1)
	}
	return desiredSpeed / rate / totalCost
}

// accelerate 加速到期望速度
func (c *controller) accelerate(desiredSpeed float64) {
	c.currentSpeed = math.Min(c.currentSpeed+c.agent.AccelerationRate(), desiredSpeed)
	prev := c.mode
	if c.currentSpeed < desiredSpeed {
		c.mode = MovementModeAccelerate
	} else {
		c.mode = MovementModeCurrentSpeed
	}
	if prev != c.mode {
		log.Debugf("vehicle %d: %v -> %v, speed=%.2f", c.agent.ID(), prev, c.mode, c.currentSpeed)
	}
}

// decelerate 减速
// 功能：按剩余代价平稳减速，来不及时急刹
// 参数：decelFraction-减速区比例，forceImmediateStop-外部要求立即停车
// 算法说明：
// 1. 剩余代价 = 当前路径上未经过部分的代价 + 排队goto任务的代价；为0时中止行驶并返回
// 2. 减速量 = min(加速度*减速倍率, (speedFloor + 当前速度) / 剩余代价)，不多减
// 3. slowdownMultiplier = 当前速度 / (加速度*减速倍率) / 剩余代价，表示正常减速能力的不足倍数
// 4. 急刹条件：未急刹过、slowdownMultiplier >= 2、速度高于speedFloor，
// 且外部要求立即停车或（全程不够平稳减速且剩余路点少于2个）
// 5. 急刹：速度再除以slowdownMultiplier，播放音效、提示、损伤车轮部件
// 6. 速度不低于speedFloor，且该过程只会降低速度
// 7. 速度回落到speedFloor后复位急刹标记
func (c *controller) decelerate(decelFraction float64, forceImmediateStop bool) {
	path := c.agent.CurPath()
	remaining := remainingCost(path, c.agent.Position(), true).Cost + c.lookaheadCost(path.LastNode()).Cost
	if remaining <= 0 {
		log.Infof("vehicle %d: nowhere left to go, abort motion", c.agent.ID())
		c.sink.AbortMotion()
		return
	}

	rate := c.agent.AccelerationRate() * c.decelerationMultiplier
	decelRate := math.Min(rate, (c.speedFloor+c.currentSpeed)/remaining)
	newSpeed := c.currentSpeed - decelRate
	slowdownMultiplier := c.currentSpeed / rate / remaining
	if !c.handbrakeApplied &&
		slowdownMultiplier >= handbrakeSlowdownMultiplier &&
		c.currentSpeed > c.speedFloor &&
		(forceImmediateStop || (decelFraction > 1 && c.agent.NodesLeft() < 2)) {
		newSpeed /= slowdownMultiplier
		c.applyHandbrake(slowdownMultiplier)
	}

	newSpeed = math.Max(c.speedFloor, newSpeed)
	if newSpeed < c.currentSpeed {
		c.currentSpeed = newSpeed
	}
	if newSpeed <= c.speedFloor {
		c.handbrakeApplied = false
	}
	if c.mode != MovementModeDecelerate {
		log.Debugf("vehicle %d: %v -> %v, speed=%.2f, remaining=%.2f", c.agent.ID(), c.mode, MovementModeDecelerate, c.currentSpeed, remaining)
	}
	c.mode = MovementModeDecelerate
}

// applyHandbrake 急刹的副作用
func (c *controller) applyHandbrake(slowdownMultiplier float64) {
	id := c.agent.ID()
	log.Warnf("vehicle %d: handbrake at speed %.2f, slowdown multiplier %.2f", id, c.currentSpeed, slowdownMultiplier)
	c.isBraking = true
	if c.brakingSound != nil && !c.brakingSound.Ended() {
		c.brakingSound.End()
	}
	c.brakingSound = c.sink.StartBrakingSound()
	c.sink.Message(MessageHandbrakeWarning, id)
	damage := int32(math.Ceil(slowdownMultiplier))
	wheels := lo.Filter(c.agent.Components(), func(comp *Component, _ int) bool {
		return comp.HasTag(c.wheelTag)
	})
	for _, comp := range wheels {
		c.sink.ApplyDamage(comp.ID, damage)
	}
	c.handbrakeApplied = true
}

// endBraking 结束急刹音效
func (c *controller) endBraking() {
	if !c.isBraking {
		return
	}
	c.isBraking = false
	if c.brakingSound != nil && !c.brakingSound.Ended() {
		c.brakingSound.End()
	}
}

// state 导出持久化字段
func (c *controller) state() snapshot.State {
	return snapshot.State{
		CurrentSpeed:       c.currentSpeed,
		WasMoving:          c.wasMoving,
		MovementMode:       int32(c.mode),
		PaidCost:           c.paidCost,
		IsBraking:          c.isBraking,
		HandbrakeApplied:   c.handbrakeApplied,
		CurFractionPassed:  c.curFractionPassed,
		PrevFractionPassed: c.prevFractionPassed,
	}
}

// restore 从存档恢复持久化字段
// 参数：s-存档，resumed-路径跟随者是否恢复了进行中的行驶
// 说明：
// 1. 音效不持久化，读档后isBraking只影响下一次停止时的收尾
// 2. 行驶已恢复时继续每步更新；否则视为已停车，下一次开始行驶时从0加速
func (c *controller) restore(s snapshot.State, resumed bool) {
	c.currentSpeed = lo.Clamp(s.CurrentSpeed, 0, c.agent.MoveSpeed())
	c.wasMoving = s.WasMoving
	c.mode = MovementMode(lo.Clamp(s.MovementMode, int32(MovementModeStarting), int32(MovementModeDecelerate)))
	c.paidCost = math.Max(s.PaidCost, 0)
	c.isBraking = s.IsBraking
	c.handbrakeApplied = s.HandbrakeApplied
	c.curFractionPassed = lo.Clamp(s.CurFractionPassed, 0, 1)
	c.prevFractionPassed = lo.Clamp(s.PrevFractionPassed, 0, 1)
	c.ticking = resumed
	if !resumed {
		c.wasMoving = false
		c.currentSpeed = 0
		c.mode = MovementModeStarting
		c.prevFractionPassed = 0
		c.isBraking = false
		c.handbrakeApplied = false
	}
}
