package entity

import (
	"context"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/config"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/snapshot"
)

// Manager依赖倒置

// entity/vehicle/manager.go的依赖倒置
type IVehicleManager interface {
	Init(cfgs []config.Vehicle)      // 初始化
	Register(sidecar *syncer.Sidecar) // 注册到Sidecar

	Prepare()          // 准备阶段：应用外部指令、更新snapshot
	Update(dt float64) // 更新阶段

	// 保存/恢复所有车辆控制器的持久化字段
	Save(ctx context.Context, store snapshot.Store) error
	Restore(ctx context.Context, store snapshot.Store) error
}
