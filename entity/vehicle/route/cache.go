package route

import (
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity"
)

// RouteKey 子路径缓存的键（起点, 终点），按值比较
type RouteKey struct {
	Start entity.Cell
	Dest  entity.Cell
}

// SubrouteCache 子路径缓存
// 功能：在一次行驶过程（episode）内缓存排队任务的路径规划结果，避免每步重复规划
// 说明：非线程安全，每辆车独享；每次开始行驶时必须Clear
type SubrouteCache struct {
	planner entity.IPlanner
	routes  map[RouteKey]entity.IRoute
}

// NewSubrouteCache 创建子路径缓存
func NewSubrouteCache(planner entity.IPlanner) *SubrouteCache {
	return &SubrouteCache{
		planner: planner,
		routes:  make(map[RouteKey]entity.IRoute),
	}
}

// Get 获取从start到dest的路径
// 功能：命中缓存则直接返回，否则向导航服务请求并写入缓存
// 返回：路径，无法规划时返回nil（失败结果同样缓存，本episode内不再重试）
func (c *SubrouteCache) Get(start, dest entity.Cell) entity.IRoute {
	key := RouteKey{Start: start, Dest: dest}
	if r, ok := c.routes[key]; ok {
		return r
	}
	r, err := c.planner.FindPath(start, dest)
	if err != nil {
		log.Debugf("subroute %v -> %v unavailable: %v", start, dest, err)
		r = nil
	}
	c.routes[key] = r
	return r
}

// Clear 清空缓存
func (c *SubrouteCache) Clear() {
	clear(c.routes)
}

// Len 缓存条目数
func (c *SubrouteCache) Len() int {
	return len(c.routes)
}
