package vehicle

import (
	"context"
	"fmt"
	"sync"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/config"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/container"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/snapshot"
)

// GlobalStatistics 全局统计
type GlobalStatistics struct {
	NumVehicles      int32   // 车辆数
	NumMoving        int32   // 正在行驶的车辆数
	NumLegsCompleted int32   // 走完的路径段数
	NumHandbrakes    int32   // 急刹次数
	TotalTravelCost  float64 // 累计消耗的代价
	TotalMovingTicks int32   // 所有车辆处于行驶状态的步数之和
	AverageSpeed     float64 // 行驶中车辆的平均速度
}

// VehicleManager 车辆管理器
// 功能：管理所有车辆，提供创建、查找、准备、更新、存档等功能
type VehicleManager struct {
	ctx entity.ITaskContext

	data map[int32]*Vehicle

	// 参与计算的车辆
	vehicles *container.IncrementalArray[*Vehicle]

	// 最近一次Prepare时的全局统计
	statistics    GlobalStatistics
	statisticsMtx sync.RWMutex
}

// NewManager 创建车辆管理器实例
func NewManager(ctx entity.ITaskContext) *VehicleManager {
	return &VehicleManager{
		ctx:      ctx,
		data:     make(map[int32]*Vehicle),
		vehicles: container.NewIncrementalArray[*Vehicle](),
	}
}

// Init 初始化所有车辆
// 功能：根据配置创建车辆并建立ID映射
// 说明：起点不可通行或ID重复属于输入错误，直接panic
func (m *VehicleManager) Init(cfgs []config.Vehicle) {
	m.vehicles = container.NewIncrementalArray[*Vehicle]()
	grid := m.ctx.Grid()
	planner := m.ctx.Planner()
	movement := m.ctx.RuntimeConfig().M
	vehicles := lo.Map(cfgs, func(cfg config.Vehicle, _ int) *Vehicle {
		start := entity.Cell{X: cfg.Start.X, Y: cfg.Start.Y}
		if !grid.Passable(start) {
			log.Panicf("vehicle %d starts at impassable cell %v", cfg.ID, start)
		}
		v := newVehicle(planner, movement, cfg)
		m.vehicles.Add(v)
		return v
	})
	m.data = lo.SliceToMap(vehicles, func(v *Vehicle) (int32, *Vehicle) {
		return v.id, v
	})
	if len(m.data) != len(vehicles) {
		log.Panicf("duplicate vehicle id in %v", lo.Map(cfgs, func(c config.Vehicle, _ int) int32 { return c.ID }))
	}
	m.vehicles.Prepare()
	log.Infof("VehicleManager: %d vehicles", len(vehicles))
}

// Get 根据ID获取车辆，不存在则panic
func (m *VehicleManager) Get(id int32) *Vehicle {
	if v, ok := m.data[id]; !ok {
		log.Panicf("no id %d in vehicle data", id)
		return nil
	} else {
		return v
	}
}

// GetOrError 根据ID获取车辆，不存在则返回错误
func (m *VehicleManager) GetOrError(id int32) (*Vehicle, error) {
	if v, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in vehicle data", id)
	} else {
		return v, nil
	}
}

// Vehicles 所有车辆
func (m *VehicleManager) Vehicles() []*Vehicle {
	return m.vehicles.Data()
}

// 准备阶段：执行外部指令，更新snapshot与全局统计
func (m *VehicleManager) Prepare() {
	m.vehicles.Prepare()
	parallel.GoFor(m.vehicles.Data(), func(v *Vehicle) {
		v.prepare()
	})
	statistics := m.collectStatistics()
	m.statisticsMtx.Lock()
	m.statistics = statistics
	m.statisticsMtx.Unlock()
	log.Debug("VehicleManager: prepare done")
}

// 更新阶段：每辆车只由一个goroutine更新
func (m *VehicleManager) Update(dt float64) {
	parallel.GoFor(m.vehicles.Data(), func(v *Vehicle) { v.update(dt) })
}

// Statistics 最近一次Prepare时的全局统计
func (m *VehicleManager) Statistics() GlobalStatistics {
	m.statisticsMtx.RLock()
	defer m.statisticsMtx.RUnlock()
	return m.statistics
}

func (m *VehicleManager) collectStatistics() GlobalStatistics {
	s := GlobalStatistics{}
	speedSum := 0.0
	for _, v := range m.vehicles.Data() {
		snap := v.Snapshot()
		s.NumVehicles++
		s.NumLegsCompleted += snap.LegsCompleted
		s.NumHandbrakes += snap.Handbrakes
		s.TotalTravelCost += snap.TravelCost
		s.TotalMovingTicks += snap.MovingTicks
		if snap.Moving {
			s.NumMoving++
			speedSum += snap.Speed
		}
	}
	if s.NumMoving > 0 {
		s.AverageSpeed = speedSum / float64(s.NumMoving)
	}
	return s
}

// Save 保存所有车辆的控制器状态与行驶进度
func (m *VehicleManager) Save(ctx context.Context, store snapshot.Store) error {
	for _, v := range m.vehicles.Data() {
		if err := store.Save(ctx, v.id, v.record()); err != nil {
			return fmt.Errorf("save vehicle %d: %w", v.id, err)
		}
	}
	log.Infof("VehicleManager: saved %d vehicles", m.vehicles.Len())
	return nil
}

// Restore 从存档恢复车辆，存档中没有的车辆（或存档位置不可通行）保持初始状态
func (m *VehicleManager) Restore(ctx context.Context, store snapshot.Store) error {
	restored := 0
	for _, v := range m.vehicles.Data() {
		r, ok, err := store.Load(ctx, v.id)
		if err != nil {
			return fmt.Errorf("restore vehicle %d: %w", v.id, err)
		}
		if !ok {
			continue
		}
		if pos := (entity.Cell{X: r.Progress.Position.X, Y: r.Progress.Position.Y}); !m.ctx.Grid().Passable(pos) {
			log.Warnf("vehicle %d: saved position %v is not passable, keep initial state", v.id, pos)
			continue
		}
		v.restore(r)
		restored++
	}
	log.Infof("VehicleManager: restored %d/%d vehicles", restored, m.vehicles.Len())
	return nil
}
