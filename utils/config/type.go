package config

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔
}

// Control 模拟器控制配置
type Control struct {
	Step ControlStep `yaml:"step"`
}

// Map 地图配置
// 功能：二选一，直接给出字符画（Rows），或者给出尺寸由随机数生成
// 说明：字符画中'.'代价为1，'1'-'9'代价为对应数字，'#'不可通行
type Map struct {
	Rows      []string `yaml:"rows,omitempty"`       // 字符画，每行一个字符串，行号即Y
	Width     int32    `yaml:"width,omitempty"`      // 宽度
	Height    int32    `yaml:"height,omitempty"`     // 高度
	Seed      uint64   `yaml:"seed,omitempty"`       // 随机种子
	MaxCost   float64  `yaml:"max_cost,omitempty"`   // 随机地形的最大代价（最小为1）
	WallRatio float64  `yaml:"wall_ratio,omitempty"` // 随机地形中不可通行格子的比例
}

// Movement 速度控制器的全局参数
type Movement struct {
	DecelerationMultiplier float64 `yaml:"deceleration_multiplier,omitempty"` // 减速相对加速的倍率
	SpeedFloor             float64 `yaml:"speed_floor,omitempty"`             // 减速的目标速度（最小非零速度）
	WheelTag               string  `yaml:"wheel_tag,omitempty"`               // 急刹时受损部件的标签
}

// Position 地图格子坐标
type Position struct {
	X int32 `yaml:"x"`
	Y int32 `yaml:"y"`
}

// Component 车辆部件
type Component struct {
	ID   string   `yaml:"id"`
	Tags []string `yaml:"tags,omitempty"`
	HP   float64  `yaml:"hp"`
}

// Job 车辆的排队任务
type Job struct {
	Type   string   `yaml:"type"`             // goto | wait
	Target Position `yaml:"target,omitempty"` // goto的目的地
	Ticks  int32    `yaml:"ticks,omitempty"`  // wait的步数
}

// Vehicle 车辆初始配置
type Vehicle struct {
	ID               int32       `yaml:"id"`
	Start            Position    `yaml:"start"`
	MoveSpeed        float64     `yaml:"move_speed"`        // 期望巡航速度
	AccelerationRate float64     `yaml:"acceleration_rate"` // 每步加速量
	Components       []Component `yaml:"components,omitempty"`
	Jobs             []Job       `yaml:"jobs,omitempty"`
}

// Snapshot 控制器状态存档配置
// 功能：File与URI二选一，File优先；都为空则不存档
type Snapshot struct {
	File    string `yaml:"file,omitempty"`    // YAML存档文件路径
	URI     string `yaml:"uri,omitempty"`     // MongoDB连接字符串
	DB      string `yaml:"db,omitempty"`      // 数据库名
	Col     string `yaml:"col,omitempty"`     // 集合名
	Restore bool   `yaml:"restore,omitempty"` // 启动时从存档恢复
}

// Config YAML配置文件的根结构
type Config struct {
	Control  Control   `yaml:"control"`  // 模拟过程控制
	Map      Map       `yaml:"map"`      // 地图
	Movement Movement  `yaml:"movement"` // 速度控制
	Vehicles []Vehicle `yaml:"vehicles"` // 车辆
	Snapshot Snapshot  `yaml:"snapshot"` // 存档
}
