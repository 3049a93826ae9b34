package clock

import (
	"fmt"

	"git.fiblab.net/sim/protos/v2/go/city/clock/v1/clockv1connect"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/config"
)

// Clock 仿真时钟
// 功能：管理仿真步数与仿真时间，提供RPC查询
// 说明：速度控制器以步（tick）为单位工作，DT只用于把速度换算为每步消耗的代价
type Clock struct {
	clockv1connect.UnimplementedClockServiceHandler

	DT        float64 // 每步时间间隔（秒）
	StartStep int32   // 起始步
	EndStep   int32   // 结束步，模拟区间[START, END)

	T            float64 // 当前时间（秒）
	InternalStep int32   // 当前步数
}

// New 根据配置创建新的时钟实例
func New(stepConfig config.ControlStep) *Clock {
	c := &Clock{
		DT:        stepConfig.Interval,
		StartStep: stepConfig.Start,
		EndStep:   stepConfig.Start + stepConfig.Total,
	}
	c.Init()
	return c
}

// Init 重置步数为起始步，重新计算当前时间
func (c *Clock) Init() {
	c.InternalStep = c.StartStep
	c.T = float64(c.InternalStep) * c.DT
}

// Advance 推进一步
// 返回：推进后是否已到达结束步
func (c *Clock) Advance() bool {
	c.InternalStep++
	c.T = float64(c.InternalStep) * c.DT
	return c.InternalStep+1 >= c.EndStep
}

// String 获取时钟的字符串表示（HH:MM:SS）
func (c *Clock) String() string {
	t := c.T
	h := int(t / 3600)
	t -= float64(h * 3600)
	m := int(t / 60)
	t -= float64(m * 60)
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
