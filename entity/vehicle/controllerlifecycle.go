package vehicle

// 行驶过程（episode）的生命周期：由车辆的MoveStart/MoveStop/Braking事件驱动

// onMoveStart 开始行驶
// 功能：开始每步更新并重置本次行驶的状态，清空子路径缓存
// 说明：连续的goto任务之间车辆不会停下（wasMoving为true），速度得以保留
func (c *controller) onMoveStart() {
	c.ticking = true
	if !c.wasMoving {
		c.currentSpeed = 0
	}
	c.mode = MovementModeAccelerate
	c.paidCost = 0
	c.handbrakeApplied = false
	c.curFractionPassed = 0
	c.cache.Clear()
}

// onMoveStop 停止行驶
// 说明：停止后车辆不再移动，下一次开始行驶时从0加速；
// 进度一并清零，避免下一次行驶被误判为路径重算导致的进度倒退
func (c *controller) onMoveStop() {
	c.ticking = false
	c.wasMoving = false
	c.prevFractionPassed = 0
	c.endBraking()
}

// onBrakeRequest 外部要求立即停车
// 功能：按当前行程计算减速区比例并强制减速，可能触发急刹
func (c *controller) onBrakeRequest() {
	if !c.agent.Moving() || c.agent.CurPath() == nil {
		return
	}
	totalCost := c.totalRemainingCostWithLookahead().Cost
	c.decelerate(c.decelerationFraction(c.agent.MoveSpeed(), totalCost), true)
}

// payCost 车辆进入一个格子后支付其代价
func (c *controller) payCost(cost float64) {
	if cost > 0 {
		c.paidCost += cost
	}
}
