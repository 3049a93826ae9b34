package route

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity"
)

// StepCostFunc 相邻路点之间的代价函数
type StepCostFunc func(from, to entity.Cell) float64

// Route 路径规划结果
// 功能：从起点到终点的有序格子序列，生成后不可变
// 说明：nodes[0]为起点，最后一个为终点；行驶进度由路径跟随者维护
type Route struct {
	nodes     []entity.Cell
	stepCost  StepCostFunc
	totalCost float64
}

// NewRoute 创建路径并计算总代价
// 参数：nodes-路点（至少1个），stepCost-逐步代价函数
func NewRoute(nodes []entity.Cell, stepCost StepCostFunc) *Route {
	if len(nodes) == 0 {
		log.Panic("route: empty nodes")
	}
	r := &Route{
		nodes:    nodes,
		stepCost: stepCost,
	}
	for i := 1; i < len(nodes); i++ {
		r.totalCost += stepCost(nodes[i-1], nodes[i])
	}
	return r
}

func (r *Route) String() string {
	return fmt.Sprintf("Route{%v -> %v, len=%d, cost=%.2f}", r.First(), r.LastNode(), len(r.nodes), r.totalCost)
}

func (r *Route) Nodes() []entity.Cell {
	return r.nodes
}

func (r *Route) Len() int {
	return len(r.nodes)
}

func (r *Route) First() entity.Cell {
	return r.nodes[0]
}

func (r *Route) LastNode() entity.Cell {
	return r.nodes[len(r.nodes)-1]
}

func (r *Route) TotalCost() float64 {
	return r.totalCost
}

func (r *Route) StepCost(from, to entity.Cell) float64 {
	return r.stepCost(from, to)
}

// Contains 路径是否经过格子c
func (r *Route) Contains(c entity.Cell) bool {
	return lo.Contains(r.nodes, c)
}
