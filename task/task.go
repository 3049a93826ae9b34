package task

import (
	"context"
	"sync/atomic"
	"time"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/clock"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity/grid"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity/vehicle/route"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/config"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/randengine"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/snapshot"
)

const (
	snapshotTimeout = 30 * time.Second // 存档读写超时
)

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态，替代全局变量
// 说明：管理仿真系统的所有组件，包括时钟、地图、导航、车辆管理器、存档
type Context struct {

	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock

	// 辅助程序，处理分布式模式下相关调用，包括与syncer、其他服务的交互
	sidecar *syncer.Sidecar
	// sidecar close channel
	sidecarCloseCh chan struct{}
	// 是否启动了sidecar服务
	serving bool

	// 地图
	grid entity.IGrid
	// 导航服务
	planner entity.IPlanner
	// 车辆管理器
	vehicleManager entity.IVehicleManager

	// 运行时配置文件
	runtimeConfig *config.RuntimeConfig
	// 控制器存档，未配置时为nil
	store snapshot.Store
}

// NewContext 创建新的仿真任务上下文
// 功能：初始化仿真系统的所有组件和配置
// 参数：
//   - job: 任务名称
//   - c: 配置对象
//   - sidecar: sidecar实例
//   - startSidecarServe: 是否启动sidecar服务
//
// 返回：初始化完成的Context实例
// 算法说明：
// 1. 补全运行时配置
// 2. 创建时钟、地图（字符画或随机生成）、导航服务、存档后端
// 3. 创建车辆管理器
// 4. 注册RPC服务到sidecar
// 5. 启动sidecar服务（如果需要）
func NewContext(
	job string,
	c config.Config,
	sidecar *syncer.Sidecar,
	startSidecarServe bool,
) *Context {
	ctx := &Context{
		job:            job,
		sidecar:        sidecar,
		sidecarCloseCh: make(chan struct{}),
		serving:        startSidecarServe,
	}
	var err error
	if ctx.runtimeConfig, err = config.NewRuntimeConfig(c); err != nil {
		log.Panicf("config: %v", err)
	}
	ctx.clock = clock.New(ctx.runtimeConfig.C.Step)

	g, err := newGrid(c.Map)
	if err != nil {
		log.Panicf("map: %v", err)
	}
	ctx.grid = g
	ctx.planner = route.New(g)

	if ctx.store, err = snapshot.New(c.Snapshot); err != nil {
		log.Panicf("snapshot: %v", err)
	}

	// 新建各类模拟对象
	ctx.vehicleManager = vehicle.NewManager(ctx)

	ctx.clock.Register(ctx.sidecar)
	ctx.vehicleManager.Register(ctx.sidecar)

	// sidecar协程，用于提供RPC服务
	if startSidecarServe {
		go func() {
			err := ctx.sidecar.Serve()
			if err != nil {
				log.Panicf("failed to serve: %v", err)
			}
			ctx.sidecarCloseCh <- struct{}{}
		}()
	}

	return ctx
}

// newGrid 根据配置创建地图，字符画优先
func newGrid(c config.Map) (*grid.Grid, error) {
	if len(c.Rows) > 0 {
		return grid.FromRows(c.Rows)
	}
	return grid.Generate(c.Width, c.Height, c.MaxCost, c.WallRatio, randengine.New(c.Seed))
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) Grid() entity.IGrid {
	return ctx.grid
}

func (ctx *Context) Planner() entity.IPlanner {
	return ctx.planner
}

func (ctx *Context) VehicleManager() entity.IVehicleManager {
	return ctx.vehicleManager
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

// Init 初始化时钟与车辆，按配置从存档恢复控制器状态
func (ctx *Context) Init() {
	ctx.clock.Init()

	log.Infof("Map: %dx%d", ctx.grid.Width(), ctx.grid.Height())
	log.Infof("Vehicle: %v", len(ctx.runtimeConfig.All.Vehicles))
	ctx.vehicleManager.Init(ctx.runtimeConfig.All.Vehicles)

	if ctx.store != nil && ctx.runtimeConfig.All.Snapshot.Restore {
		c, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()
		if err := ctx.vehicleManager.Restore(c, ctx.store); err != nil {
			log.Panicf("restore: %v", err)
		}
	}
}

// Close 保存存档并关闭sidecar
func (ctx *Context) Close() {
	if ctx.closed.Load() {
		return
	}
	if ctx.store != nil {
		c, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		if err := ctx.vehicleManager.Save(c, ctx.store); err != nil {
			log.Errorf("save: %v", err)
		}
		if err := ctx.store.Close(c); err != nil {
			log.Errorf("close snapshot store: %v", err)
		}
		cancel()
	}
	ctx.sidecar.Close()
	// wait for graceful stop
	if ctx.serving {
		<-ctx.sidecarCloseCh
	}
	ctx.closed.Store(true)
}
