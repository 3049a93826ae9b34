package route

import (
	"fmt"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/container"
)

// LocalPlanner 本地导航服务（格子地图上的A*）
type LocalPlanner struct {
	grid entity.IGrid
}

// NewLocalPlanner 创建本地导航服务
func NewLocalPlanner(grid entity.IGrid) *LocalPlanner {
	return &LocalPlanner{grid: grid}
}

// FindPath 路径规划（同步版本）
// 功能：在格子地图上搜索从start到dest的最小代价路径
// 参数：start-起点，dest-终点
// 返回：路径（包含起点与终点），无法到达时返回error
// 算法说明：
// 1. 起点或终点不可通行时直接失败
// 2. 起点即终点时返回只有一个路点的路径
// 3. A*搜索，g为已走代价，h为八方向距离乘最小格子代价
// 4. 回溯parent得到路径
func (l *LocalPlanner) FindPath(start, dest entity.Cell) (entity.IRoute, error) {
	if !l.grid.Passable(start) {
		return nil, fmt.Errorf("start %v is not passable", start)
	}
	if !l.grid.Passable(dest) {
		return nil, fmt.Errorf("destination %v is not passable", dest)
	}
	if start == dest {
		return NewRoute([]entity.Cell{start}, l.grid.StepCost), nil
	}
	g := map[entity.Cell]float64{start: 0}
	parent := map[entity.Cell]entity.Cell{}
	closed := map[entity.Cell]struct{}{}
	open := container.NewPriorityQueue[entity.Cell]()
	open.HeapPush(start, l.grid.Heuristic(start, dest))
	for open.Len() > 0 {
		cur, _ := open.HeapPop()
		if cur == dest {
			return NewRoute(l.backtrack(parent, start, dest), l.grid.StepCost), nil
		}
		if _, ok := closed[cur]; ok {
			continue
		}
		closed[cur] = struct{}{}
		for _, next := range l.grid.Neighbors(cur) {
			if _, ok := closed[next]; ok {
				continue
			}
			cost := g[cur] + l.grid.StepCost(cur, next)
			best, ok := g[next]
			if !ok {
				best = mathutil.INF
			}
			if cost < best {
				g[next] = cost
				parent[next] = cur
				open.HeapPush(next, cost+l.grid.Heuristic(next, dest))
			}
		}
	}
	log.Debugf("no path from %v to %v", start, dest)
	return nil, fmt.Errorf("no path from %v to %v", start, dest)
}

func (l *LocalPlanner) backtrack(parent map[entity.Cell]entity.Cell, start, dest entity.Cell) []entity.Cell {
	nodes := []entity.Cell{dest}
	for cur := dest; cur != start; {
		cur = parent[cur]
		nodes = append(nodes, cur)
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	return nodes
}
