package vehicle

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/config"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/snapshot"
)

// pather 路径跟随者（车辆的移动执行器）
// 功能：维护车辆位置、当前路径与排队任务，每步按控制器给出的速度消耗格子代价并前进
// 说明：
// 1. 进入一个格子前需要消耗完该格子的代价，一步内可以连续进入多个格子，多余的速度留给下一个格子
// 2. 到达路径终点后，若下一个任务是goto则直接开始下一段（只触发MoveStart，车辆没有停下）
type pather struct {
	v       *Vehicle
	planner entity.IPlanner

	position entity.Cell   // 当前所在格子
	path     entity.IRoute // 当前路径，空闲时为nil
	index    int           // 当前所在格子在路径中的下标
	moving   bool          // 是否正在沿路径行驶

	nextCellCostTotal float64 // 正在进入的格子的总代价
	nextCellCostLeft  float64 // 正在进入的格子的剩余代价

	jobs     []Job // 排队任务（不含正在执行的任务）
	waitLeft int32 // 正在执行的wait任务剩余步数
}

func newPather(v *Vehicle, planner entity.IPlanner, start entity.Cell) *pather {
	return &pather{
		v:        v,
		planner:  planner,
		position: start,
		jobs:     make([]Job, 0),
	}
}

// tick 每步更新
// 参数：dt-时间步长，speed-控制器给出的当前速度（每单位时间消耗的代价）
// 返回：本步消耗的代价
func (p *pather) tick(dt float64, speed float64) (ds float64) {
	if !p.moving {
		if p.waitLeft > 0 {
			p.waitLeft--
			if p.waitLeft > 0 {
				return 0
			}
		}
		if len(p.jobs) > 0 {
			p.startNextJob(false)
		}
		return 0
	}
	budget := speed * dt
	for p.moving && budget > 0 {
		if p.nextCellCostLeft > budget {
			p.nextCellCostLeft -= budget
			ds += budget
			break
		}
		budget -= p.nextCellCostLeft
		ds += p.nextCellCostLeft
		p.enterNextCell()
	}
	return ds
}

// enterNextCell 进入下一个格子，到达终点时切换到下一个任务
func (p *pather) enterNextCell() {
	p.index++
	p.position = p.path.Nodes()[p.index]
	p.v.controller.payCost(p.nextCellCostTotal)
	p.v.runtime.CellsVisited++
	if p.NodesLeft() > 0 {
		p.setNextCell()
		return
	}
	log.Debugf("vehicle %d: arrived at %v", p.v.id, p.position)
	p.v.runtime.LegsCompleted++
	p.clearPath()
	p.startNextJob(true)
}

// startNextJob 取出并开始下一个排队任务
// 参数：chained-是否刚刚走完一段路径（车辆仍在行驶）
// 算法说明：
// 1. goto任务：规划路径并开始行驶，触发MoveStart（chained时不触发MoveStop，速度得以保留）
// 2. 目的地就是当前位置或者无法规划的goto任务直接跳过
// 3. wait任务：开始等待，chained时先触发MoveStop
// 4. 没有任务：chained时触发MoveStop
func (p *pather) startNextJob(chained bool) {
	for len(p.jobs) > 0 {
		job := p.jobs[0]
		p.jobs = p.jobs[1:]
		switch job.Type {
		case JobTypeGoto:
			if p.startGoto(job.Target) {
				p.v.fire(EventMoveStart)
				return
			}
		case JobTypeWait:
			if chained {
				p.v.fire(EventMoveStop)
			}
			p.waitLeft = job.Ticks
			return
		}
	}
	if chained {
		p.v.fire(EventMoveStop)
	}
}

// startGoto 规划到target的路径并开始行驶
// 返回：是否开始行驶
func (p *pather) startGoto(target entity.Cell) bool {
	r, err := p.planner.FindPath(p.position, target)
	if err != nil {
		log.Warnf("vehicle %d: skip goto %v: %v", p.v.id, target, err)
		return false
	}
	if r.Len() < 2 {
		log.Debugf("vehicle %d: already at %v", p.v.id, target)
		return false
	}
	p.path = r
	p.index = 0
	p.moving = true
	p.setNextCell()
	log.Debugf("vehicle %d: start %v", p.v.id, r)
	return true
}

func (p *pather) setNextCell() {
	nodes := p.path.Nodes()
	p.nextCellCostTotal = p.path.StepCost(nodes[p.index], nodes[p.index+1])
	p.nextCellCostLeft = p.nextCellCostTotal
}

func (p *pather) clearPath() {
	p.path = nil
	p.index = 0
	p.moving = false
	p.nextCellCostTotal = 0
	p.nextCellCostLeft = 0
}

// failed 中止当前行驶（放弃当前这一段，排队任务保留）
func (p *pather) failed() {
	if !p.moving {
		return
	}
	log.Infof("vehicle %d: motion aborted at %v", p.v.id, p.position)
	p.clearPath()
	p.v.fire(EventMoveStop)
}

// stop 立即停车并清空所有任务
// 说明：停车前触发Braking事件，控制器据此强制减速（可能触发急刹）
func (p *pather) stop() {
	p.jobs = p.jobs[:0]
	p.waitLeft = 0
	if !p.moving {
		return
	}
	p.v.fire(EventBraking)
	// 急刹过程中可能已经中止了行驶
	if !p.moving {
		return
	}
	p.clearPath()
	p.v.fire(EventMoveStop)
}

// progress 导出行驶进度
func (p *pather) progress() snapshot.Progress {
	pr := snapshot.Progress{
		Position: toPosition(p.position),
		Moving:   p.moving,
		WaitLeft: p.waitLeft,
		Jobs:     lo.Map(p.jobs, func(j Job, _ int) config.Job { return j.toConfig() }),
	}
	if p.moving {
		pr.PathStart = toPosition(p.path.First())
		pr.PathDest = toPosition(p.path.LastNode())
		pr.Index = int32(p.index)
		pr.NextCellCostLeft = p.nextCellCostLeft
	}
	return pr
}

// restore 从存档恢复行驶进度
// 返回：是否恢复了进行中的行驶
// 算法说明：
// 1. 位置、等待步数与排队任务直接恢复，无法识别的任务丢弃
// 2. 行驶中的车辆重新规划存档中的路径，路径与位置对不上时放弃这一段（车辆停在原地）
func (p *pather) restore(pr snapshot.Progress) bool {
	p.clearPath()
	p.position = entity.Cell{X: pr.Position.X, Y: pr.Position.Y}
	p.waitLeft = max(pr.WaitLeft, 0)
	p.jobs = make([]Job, 0, len(pr.Jobs))
	for _, jc := range pr.Jobs {
		job, err := newJob(jc)
		if err != nil {
			log.Warnf("vehicle %d: drop saved job: %v", p.v.id, err)
			continue
		}
		p.jobs = append(p.jobs, job)
	}
	if !pr.Moving {
		return false
	}
	start := entity.Cell{X: pr.PathStart.X, Y: pr.PathStart.Y}
	dest := entity.Cell{X: pr.PathDest.X, Y: pr.PathDest.Y}
	r, err := p.planner.FindPath(start, dest)
	if err != nil {
		log.Warnf("vehicle %d: saved path %v -> %v unavailable: %v", p.v.id, start, dest, err)
		return false
	}
	index := int(pr.Index)
	if index < 0 || index >= r.Len()-1 || r.Nodes()[index] != p.position {
		log.Warnf("vehicle %d: saved position %v is not node %d of %v", p.v.id, p.position, index, r)
		return false
	}
	p.path = r
	p.index = index
	p.moving = true
	p.setNextCell()
	p.nextCellCostLeft = lo.Clamp(pr.NextCellCostLeft, 0, p.nextCellCostTotal)
	return true
}

func toPosition(c entity.Cell) config.Position {
	return config.Position{X: c.X, Y: c.Y}
}

// addJob 追加排队任务
func (p *pather) addJob(job Job) {
	p.jobs = append(p.jobs, job)
}

func (p *pather) Moving() bool {
	return p.moving
}

func (p *pather) CurPath() entity.IRoute {
	return p.path
}

func (p *pather) Position() entity.Cell {
	return p.position
}

// NodesLeft 当前路径上尚未进入的路点数
func (p *pather) NodesLeft() int {
	if p.path == nil {
		return 0
	}
	return p.path.Len() - 1 - p.index
}

func (p *pather) NextCellCostTotal() float64 {
	return p.nextCellCostTotal
}

func (p *pather) NextCellCostLeft() float64 {
	return p.nextCellCostLeft
}

func (p *pather) PendingJobs() []Job {
	return p.jobs
}
