package route

import (
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity"
)

// New 初始化导航服务
func New(grid entity.IGrid) entity.IPlanner {
	return NewLocalPlanner(grid)
}
