package grid

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/randengine"
)

const wall = '#'

var (
	impassable = math.Inf(1)

	// 8方向邻居偏移，前4个为正交方向
	offsets = [8][2]int32{
		{1, 0}, {-1, 0}, {0, 1}, {0, -1},
		{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
	}
)

// Grid 格子地图
// 功能：存储每个格子的进入代价，代价为+Inf表示不可通行
type Grid struct {
	width, height int32
	costs         []float64
	minCost       float64
}

// New 根据逐格代价创建地图
// 参数：width,height-尺寸，costs-按行优先排列的代价（长度必须为width*height）
func New(width, height int32, costs []float64) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid: invalid size %dx%d", width, height)
	}
	if len(costs) != int(width*height) {
		return nil, fmt.Errorf("grid: expect %d costs, got %d", width*height, len(costs))
	}
	g := &Grid{width: width, height: height, costs: costs, minCost: mathutil.INF}
	passable := 0
	for _, c := range costs {
		if c <= 0 {
			return nil, fmt.Errorf("grid: cost must be positive, got %v", c)
		}
		if !math.IsInf(c, 1) {
			passable++
			g.minCost = math.Min(g.minCost, c)
		}
	}
	if passable == 0 {
		return nil, fmt.Errorf("grid: no passable cell")
	}
	return g, nil
}

// FromRows 从字符画创建地图
// 说明：'.'代价为1，'1'-'9'代价为对应数字，'#'不可通行，所有行必须等长
func FromRows(rows []string) (*Grid, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("grid: empty rows")
	}
	width := len(rows[0])
	costs := make([]float64, 0, width*len(rows))
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("grid: row %d has length %d, expect %d", y, len(row), width)
		}
		for x, ch := range []byte(row) {
			switch {
			case ch == '.':
				costs = append(costs, 1)
			case ch >= '1' && ch <= '9':
				costs = append(costs, float64(ch-'0'))
			case ch == wall:
				costs = append(costs, impassable)
			default:
				return nil, fmt.Errorf("grid: bad cell %q at (%d,%d)", ch, x, y)
			}
		}
	}
	return New(int32(width), int32(len(rows)), costs)
}

// Generate 随机生成地形
// 参数：maxCost-最大代价（代价在[1,maxCost)均匀分布），wallRatio-不可通行比例
// 说明：(0,0)总是可通行
func Generate(width, height int32, maxCost, wallRatio float64, e *randengine.Engine) (*Grid, error) {
	maxCost = math.Max(maxCost, 1)
	costs := lo.Times(int(width*height), func(i int) float64 {
		if i > 0 && e.PTrue(wallRatio) {
			return impassable
		}
		if maxCost == 1 {
			return 1
		}
		return math.Round(e.Uniform(1, maxCost)*10) / 10
	})
	return New(width, height, costs)
}

func (g *Grid) Width() int32 {
	return g.width
}

func (g *Grid) Height() int32 {
	return g.height
}

func (g *Grid) MinCost() float64 {
	return g.minCost
}

func (g *Grid) InBounds(c entity.Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.width && c.Y < g.height
}

// Cost 进入格子的代价，越界时返回+Inf
func (g *Grid) Cost(c entity.Cell) float64 {
	if !g.InBounds(c) {
		return impassable
	}
	return g.costs[c.Y*g.width+c.X]
}

func (g *Grid) Passable(c entity.Cell) bool {
	return !math.IsInf(g.Cost(c), 1)
}

// Neighbors 可通行的8方向邻居
// 说明：斜向移动要求两个相邻的正交格子都可通行（不允许切角）
func (g *Grid) Neighbors(c entity.Cell) []entity.Cell {
	res := make([]entity.Cell, 0, len(offsets))
	for i, o := range offsets {
		n := entity.Cell{X: c.X + o[0], Y: c.Y + o[1]}
		if !g.Passable(n) {
			continue
		}
		if i >= 4 && (!g.Passable(entity.Cell{X: c.X + o[0], Y: c.Y}) || !g.Passable(entity.Cell{X: c.X, Y: c.Y + o[1]})) {
			continue
		}
		res = append(res, n)
	}
	return res
}

// StepCost 从from移动到to的代价
// 算法说明：
// 1. 同一格子代价为0
// 2. 八方向距离（octile）乘以目标格子的代价，相邻格子即1或√2倍
func (g *Grid) StepCost(from, to entity.Cell) float64 {
	if from == to {
		return 0
	}
	return octile(from, to) * g.Cost(to)
}

// octile 八方向距离
func octile(a, b entity.Cell) float64 {
	dx := math.Abs(float64(a.X - b.X))
	dy := math.Abs(float64(a.Y - b.Y))
	return math.Max(dx, dy) + (math.Sqrt2-1)*math.Min(dx, dy)
}

// Heuristic A*启发函数：八方向距离乘以最小代价，保证可采纳
func (g *Grid) Heuristic(a, b entity.Cell) float64 {
	return octile(a, b) * g.minCost
}
