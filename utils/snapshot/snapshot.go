// 车辆存档：速度控制器的8个标量字段，加上路径跟随者的行驶进度，读档后可以继续当前行驶过程
package snapshot

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/config"
)

var log = logrus.WithField("module", "snapshot")

// State 控制器持久化字段
type State struct {
	CurrentSpeed       float64 `yaml:"current_speed" bson:"current_speed"`
	WasMoving          bool    `yaml:"was_moving" bson:"was_moving"`
	MovementMode       int32   `yaml:"movement_mode" bson:"movement_mode"`
	PaidCost           float64 `yaml:"paid_cost" bson:"paid_cost"`
	IsBraking          bool    `yaml:"is_braking" bson:"is_braking"`
	HandbrakeApplied   bool    `yaml:"handbrake_applied" bson:"handbrake_applied"`
	CurFractionPassed  float64 `yaml:"cur_fraction_passed" bson:"cur_fraction_passed"`
	PrevFractionPassed float64 `yaml:"prev_fraction_passed" bson:"prev_fraction_passed"`
}

// Progress 路径跟随者的行驶进度
// 说明：路径本身不保存，读档时从PathStart到PathDest重新规划（同一地图上结果相同）
type Progress struct {
	Position         config.Position `yaml:"position" bson:"position"`
	Moving           bool            `yaml:"moving" bson:"moving"`
	PathStart        config.Position `yaml:"path_start" bson:"path_start"`
	PathDest         config.Position `yaml:"path_dest" bson:"path_dest"`
	Index            int32           `yaml:"index" bson:"index"`                             // 当前所在格子在路径中的下标
	NextCellCostLeft float64         `yaml:"next_cell_cost_left" bson:"next_cell_cost_left"` // 正在进入的格子的剩余代价
	WaitLeft         int32           `yaml:"wait_left" bson:"wait_left"`
	Jobs             []config.Job    `yaml:"jobs" bson:"jobs"`
}

// Record 一辆车的存档
type Record struct {
	Controller State    `yaml:"controller" bson:"controller"`
	Progress   Progress `yaml:"progress" bson:"progress"`
}

// Store 存档后端
type Store interface {
	// 保存车辆id的存档（覆盖）
	Save(ctx context.Context, id int32, r Record) error
	// 读取车辆id的存档，不存在时ok为false
	Load(ctx context.Context, id int32) (r Record, ok bool, err error)
	// 关闭后端，写出尚未落盘的存档
	Close(ctx context.Context) error
}

// New 根据配置创建存档后端
// 返回：未配置存档时返回nil
func New(c config.Snapshot) (Store, error) {
	switch {
	case c.File != "":
		log.Infof("snapshot: use file %s", c.File)
		s, err := NewFileStore(c.File)
		if err != nil {
			return nil, err
		}
		return s, nil
	case c.URI != "":
		log.Infof("snapshot: use mongodb %s.%s", c.DB, c.Col)
		return NewMongoStore(c.URI, c.DB, c.Col), nil
	default:
		return nil, nil
	}
}
