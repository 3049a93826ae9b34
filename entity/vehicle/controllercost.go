package vehicle

import (
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity"
)

// remainingCost 路径代价
// 功能：沿路径逐个路点累加逐步代价
// 参数：path-路径，from-计算起点（第一个路点的前一个位置），ignorePassedSteps-是否只统计from之后的部分
// 返回：代价与计入的路点数，path为nil时为0
// 算法说明：
// 1. 从from出发依次走过路径的每个路点，代价为前一个位置到该路点的逐步代价
// 2. ignorePassedSteps为true时，走到from之前的路点都不计入（已经走过），走到from之后才开始累加
func remainingCost(path entity.IRoute, from entity.Cell, ignorePassedSteps bool) PathCostResult {
	res := PathCostResult{}
	if path == nil {
		return res
	}
	prev := from
	started := !ignorePassedSteps
	for _, node := range path.Nodes() {
		if started {
			res.Cost += path.StepCost(prev, node)
			res.Steps++
		}
		if node == from {
			started = true
		}
		prev = node
	}
	return res
}

// totalRemainingCostWithLookahead 整个行程的代价
// 功能：当前路径的全部代价 + 正在进入的格子已经消耗的部分 + 排队goto任务的代价
// 说明：当前路径从起点计算而不是从车辆位置，因此结果在行驶过程中保持稳定，
// 与已支付代价相比即得到行程进度
func (c *controller) totalRemainingCostWithLookahead() PathCostResult {
	path := c.agent.CurPath()
	if path == nil {
		return PathCostResult{}
	}
	res := remainingCost(path, path.First(), false)
	res.Cost += c.agent.NextCellCostTotal() - c.agent.NextCellCostLeft()
	res.add(c.lookaheadCost(path.LastNode()))
	return res
}

// lookaheadCost 排队任务的代价
// 功能：按顺序遍历排队任务，对连续的goto任务逐段规划（经子路径缓存）并累加代价
// 参数：start-第一段的起点（当前路径的终点）
// 算法说明：
// 1. 遇到第一个非goto任务即停止，它及之后的任务都不计入
// 2. 某一段无法规划时同样停止，视为已知行程的终点
func (c *controller) lookaheadCost(start entity.Cell) PathCostResult {
	res := PathCostResult{}
	for _, job := range c.agent.PendingJobs() {
		if job.Type != JobTypeGoto {
			break
		}
		leg := c.cache.Get(start, job.Target)
		if leg == nil {
			break
		}
		res.add(remainingCost(leg, leg.First(), false))
		start = leg.LastNode()
	}
	return res
}
