package vehicle

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/config"
)

// MovementMode 速度控制模式
// 说明：Starting只作为空闲/重置值，行驶开始后不会再回到Starting
type MovementMode int32

const (
	MovementModeStarting     MovementMode = iota // 空闲
	MovementModeAccelerate                       // 加速
	MovementModeCurrentSpeed                     // 保持当前速度
	MovementModeDecelerate                       // 减速
)

func (m MovementMode) String() string {
	switch m {
	case MovementModeStarting:
		return "Starting"
	case MovementModeAccelerate:
		return "Accelerate"
	case MovementModeCurrentSpeed:
		return "CurrentSpeed"
	case MovementModeDecelerate:
		return "Decelerate"
	default:
		return fmt.Sprintf("MovementMode(%d)", int32(m))
	}
}

// PathCostResult 路径代价统计
type PathCostResult struct {
	Cost  float64 // 代价
	Steps int32   // 计入的路点数
}

func (r *PathCostResult) add(o PathCostResult) {
	r.Cost += o.Cost
	r.Steps += o.Steps
}

func (r PathCostResult) String() string {
	return fmt.Sprintf("Cost: %.2f - steps: %d", r.Cost, r.Steps)
}

// JobType 排队任务类型
type JobType int32

const (
	JobTypeGoto JobType = iota // 移动到目标格子
	JobTypeWait                // 原地等待若干步
)

func (t JobType) String() string {
	switch t {
	case JobTypeGoto:
		return "goto"
	case JobTypeWait:
		return "wait"
	default:
		return fmt.Sprintf("JobType(%d)", int32(t))
	}
}

// Job 车辆的排队任务
type Job struct {
	Type   JobType
	Target entity.Cell // goto的目的地
	Ticks  int32       // wait的步数
}

// newJob 从配置创建任务
func newJob(c config.Job) (Job, error) {
	switch c.Type {
	case "goto":
		return Job{Type: JobTypeGoto, Target: entity.Cell{X: c.Target.X, Y: c.Target.Y}}, nil
	case "wait":
		return Job{Type: JobTypeWait, Ticks: c.Ticks}, nil
	default:
		return Job{}, fmt.Errorf("unknown job type %q", c.Type)
	}
}

// toConfig 转换为配置形式（用于存档）
func (j Job) toConfig() config.Job {
	switch j.Type {
	case JobTypeGoto:
		return config.Job{Type: "goto", Target: config.Position{X: j.Target.X, Y: j.Target.Y}}
	default:
		return config.Job{Type: "wait", Ticks: j.Ticks}
	}
}

// Component 车辆部件
type Component struct {
	ID    string
	Tags  []string
	HP    float64
	MaxHP float64
}

// HasTag 部件是否带有标签tag
func (c *Component) HasTag(tag string) bool {
	return lo.Contains(c.Tags, tag)
}

// EventType 车辆事件
type EventType int32

const (
	EventMoveStart EventType = iota // 开始沿路径行驶
	EventMoveStop                   // 停止行驶
	EventBraking                    // 即将被要求立即停车
)
