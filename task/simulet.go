package task

import (
	"flag"

	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity/vehicle"
)

const (
	SelfName = "vehicle" // 本程序在模拟任务集群中的名字
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：在每个仿真步骤开始时进行准备工作
// 返回：本步是否为最后一步
// 算法说明：
// 1. 更新时钟：增加内部步数并计算当前时间
// 2. 心跳日志：定期输出步数与全局统计
// 3. 车辆管理器准备：执行外部指令，更新snapshot
func (ctx *Context) prepare() (last bool) {
	log.Debugf("step %d complete, +1", ctx.clock.InternalStep)
	last = ctx.clock.Advance()

	ctx.vehicleManager.Prepare()

	if *heartBeatInterval > 0 && ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
		if m, ok := ctx.vehicleManager.(*vehicle.VehicleManager); ok {
			s := m.Statistics()
			log.Infof(
				"STEP: %d(%v) moving=%d/%d legs=%d handbrakes=%d",
				ctx.clock.InternalStep, ctx.clock,
				s.NumMoving, s.NumVehicles, s.NumLegsCompleted, s.NumHandbrakes,
			)
		} else {
			log.Infof("STEP: %d(%v)", ctx.clock.InternalStep, ctx.clock)
		}
	}
	return last
}

// update 更新阶段，每步执行一次
func (ctx *Context) update() {
	ctx.vehicleManager.Update(ctx.clock.DT)
}

// Run 运行
// 说明：由sidecar控制步进，最后一步时通知syncer结束
func (ctx *Context) Run() {
	// 初始化
	ctx.Init()
	// init syncer
	ctx.sidecar.Step(false)
	for {
		last := ctx.prepare()
		// 通知准备阶段完成
		log.Debugf("step %d: prepare complete and call NotifyStepReady", ctx.clock.InternalStep)
		ctx.sidecar.NotifyStepReady()
		log.Debugf("step %d: NotifyStepReady complete", ctx.clock.InternalStep)
		ctx.update()
		log.Debugf("step %d: update complete", ctx.clock.InternalStep)
		close := ctx.sidecar.Step(last)
		if close || last || ctx.closed.Load() {
			break
		}
	}
	log.Infof("engine complete")
	ctx.Close()
}
