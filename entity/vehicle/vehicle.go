package vehicle

import (
	"sync"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/config"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/container"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/snapshot"
)

// runtime 车辆的累计统计
type runtime struct {
	LegsCompleted int32   // 走完的路径段数
	CellsVisited  int32   // 进入过的格子数
	TravelCost    float64 // 累计消耗的代价
	MovingTicks   int32   // 处于行驶状态的步数
	Handbrakes    int32   // 急刹次数
}

// Status 车辆状态快照（Prepare阶段生成，供RPC读取）
type Status struct {
	ID               int32
	Position         entity.Cell
	Moving           bool
	Speed            float64
	Mode             MovementMode
	PaidCost         float64
	IsBraking        bool
	HandbrakeApplied bool
	FractionPassed   float64
	NodesLeft        int
	PendingJobs      int
	WaitLeft         int32
	Components       []Component
	Messages         []string

	runtime
}

// command 外部指令，在Prepare阶段统一执行
type command struct {
	job   *Job // 追加任务
	brake bool // 立即停车
}

// Vehicle 车辆实体
// 功能：持有车辆属性与部件，组合路径跟随者与速度控制器，并通过事件表把二者连接起来
type Vehicle struct {
	container.IncrementalItemBase

	// 静态属性
	id               int32
	moveSpeed        float64
	accelerationRate float64
	components       []*Component

	// 事件表：MoveStart/MoveStop/Braking -> 回调
	events map[EventType][]func()

	*pather
	controller *controller

	runtime  runtime
	messages []string // 最近的用户提示

	commands    []command
	commandsMtx sync.Mutex

	snapshot    Status
	snapshotMtx sync.RWMutex
}

// newVehicle 创建车辆
// 功能：根据配置创建车辆、路径跟随者与速度控制器，注册控制器的三个事件回调，排入初始任务
// 参数：planner-导航服务，m-速度控制全局参数，cfg-车辆配置
func newVehicle(planner entity.IPlanner, m config.Movement, cfg config.Vehicle) *Vehicle {
	v := &Vehicle{
		id:               cfg.ID,
		moveSpeed:        cfg.MoveSpeed,
		accelerationRate: cfg.AccelerationRate,
		components: lo.Map(cfg.Components, func(c config.Component, _ int) *Component {
			return &Component{ID: c.ID, Tags: c.Tags, HP: c.HP, MaxHP: c.HP}
		}),
		events:   make(map[EventType][]func()),
		messages: make([]string, 0),
		commands: make([]command, 0),
	}
	v.pather = newPather(v, planner, entity.Cell{X: cfg.Start.X, Y: cfg.Start.Y})
	v.controller = newController(v, &effects{v: v}, planner, m)
	v.AddEvent(EventMoveStart, v.controller.onMoveStart)
	v.AddEvent(EventMoveStop, v.controller.onMoveStop)
	v.AddEvent(EventBraking, v.controller.onBrakeRequest)
	for i, jc := range cfg.Jobs {
		job, err := newJob(jc)
		if err != nil {
			log.Panicf("vehicle %d job %d: %v", cfg.ID, i, err)
		}
		v.pather.addJob(job)
	}
	v.snapshot = v.status()
	return v
}

// AddEvent 注册事件回调
func (v *Vehicle) AddEvent(t EventType, fn func()) {
	v.events[t] = append(v.events[t], fn)
}

func (v *Vehicle) fire(t EventType) {
	for _, fn := range v.events[t] {
		fn()
	}
}

// prepare 准备阶段：执行外部指令并更新快照
func (v *Vehicle) prepare() {
	v.commandsMtx.Lock()
	commands := v.commands
	v.commands = make([]command, 0)
	v.commandsMtx.Unlock()
	for _, c := range commands {
		if c.brake {
			log.Infof("vehicle %d: brake requested", v.id)
			v.pather.stop()
		}
		if c.job != nil {
			v.pather.addJob(*c.job)
		}
	}

	v.snapshotMtx.Lock()
	defer v.snapshotMtx.Unlock()
	v.snapshot = v.status()
}

// update 更新阶段
// 功能：先由控制器决定本步速度，再由路径跟随者按该速度前进
func (v *Vehicle) update(dt float64) {
	v.controller.tick()
	if v.pather.moving {
		v.runtime.MovingTicks++
	}
	v.runtime.TravelCost += v.pather.tick(dt, v.controller.currentSpeed)
}

// pushCommand 登记外部指令（线程安全）
func (v *Vehicle) pushCommand(c command) {
	v.commandsMtx.Lock()
	defer v.commandsMtx.Unlock()
	v.commands = append(v.commands, c)
}

// Snapshot 最近一次Prepare时的车辆状态（线程安全）
func (v *Vehicle) Snapshot() Status {
	v.snapshotMtx.RLock()
	defer v.snapshotMtx.RUnlock()
	return v.snapshot
}

func (v *Vehicle) status() Status {
	c := v.controller
	return Status{
		ID:               v.id,
		Position:         v.pather.position,
		Moving:           v.pather.moving,
		Speed:            c.currentSpeed,
		Mode:             c.mode,
		PaidCost:         c.paidCost,
		IsBraking:        c.isBraking,
		HandbrakeApplied: c.handbrakeApplied,
		FractionPassed:   c.curFractionPassed,
		NodesLeft:        v.pather.NodesLeft(),
		PendingJobs:      len(v.pather.jobs),
		WaitLeft:         v.pather.waitLeft,
		Components: lo.Map(v.components, func(c *Component, _ int) Component {
			cc := *c
			cc.Tags = append([]string(nil), c.Tags...)
			return cc
		}),
		Messages: append([]string(nil), v.messages...),
		runtime:  v.runtime,
	}
}

// record 导出存档：控制器状态与行驶进度
func (v *Vehicle) record() snapshot.Record {
	return snapshot.Record{
		Controller: v.controller.state(),
		Progress:   v.pather.progress(),
	}
}

// restore 从存档恢复
// 说明：先恢复行驶进度，控制器根据行驶是否恢复决定继续当前行驶还是回到停车状态
func (v *Vehicle) restore(r snapshot.Record) {
	resumed := v.pather.restore(r.Progress)
	v.controller.restore(r.Controller, resumed)

	v.snapshotMtx.Lock()
	defer v.snapshotMtx.Unlock()
	v.snapshot = v.status()
}

// IAgent

func (v *Vehicle) ID() int32 {
	return v.id
}

func (v *Vehicle) MoveSpeed() float64 {
	return v.moveSpeed
}

func (v *Vehicle) AccelerationRate() float64 {
	return v.accelerationRate
}

func (v *Vehicle) Components() []*Component {
	return v.components
}
