package entity

import (
	"fmt"
)

// Cell 地图格子坐标
type Cell struct {
	X int32 `yaml:"x"`
	Y int32 `yaml:"y"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// entity/grid/grid.go的依赖倒置
type IGrid interface {
	Width() int32  // 宽度（格）
	Height() int32 // 高度（格）

	InBounds(c Cell) bool    // 是否在地图范围内
	Passable(c Cell) bool    // 是否可通行
	Cost(c Cell) float64     // 进入该格子的代价
	MinCost() float64        // 所有可通行格子中的最小代价（用于A*启发函数）
	Neighbors(c Cell) []Cell // 可通行的邻居（8方向，不允许切角）

	// 从from移动到to的代价（外部提供的逐步代价函数）
	StepCost(from, to Cell) float64
	// 从a到b的代价下界
	Heuristic(a, b Cell) float64
}

// entity/vehicle/route/route.go的依赖倒置
// 路径一旦生成即不可变，消耗进度由使用者自己维护
type IRoute interface {
	Nodes() []Cell      // 从起点到终点的有序路点（包含起点）
	Len() int           // 路点数
	First() Cell        // 起点
	LastNode() Cell     // 终点
	TotalCost() float64 // 整条路径的代价

	// 相邻路点之间的代价
	StepCost(from, to Cell) float64

	String() string
}

// 导航服务
type IPlanner interface {
	// 路径规划（同步版本），无法到达时返回error
	FindPath(start, dest Cell) (IRoute, error)
}
