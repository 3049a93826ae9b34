package config

import (
	"fmt"
)

const (
	defaultDecelerationMultiplier = 4
	defaultSpeedFloor             = 2.5
	defaultWheelTag               = "wheel"
)

// RuntimeConfig 运行时配置
// 功能：存储仿真运行时的配置信息，补全默认值
type RuntimeConfig struct {
	All Config   // 全部配置
	C   Control  // 全局控制配置
	M   Movement // 速度控制参数（已补全默认值）
}

// NewRuntimeConfig 根据配置初始化全局变量
// 功能：创建运行时配置对象，进行配置验证并补全默认值
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针
// 算法说明：
// 1. 减速倍率、速度下限、车轮标签未指定时使用默认值（4、2.5、"wheel"）
// 2. 检查所有车辆的加速度与期望速度为正
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	rc := &RuntimeConfig{
		All: config,
		C:   config.Control,
		M:   config.Movement,
	}
	if rc.M.DecelerationMultiplier == 0 {
		rc.M.DecelerationMultiplier = defaultDecelerationMultiplier
	}
	if rc.M.SpeedFloor == 0 {
		rc.M.SpeedFloor = defaultSpeedFloor
	}
	if rc.M.WheelTag == "" {
		rc.M.WheelTag = defaultWheelTag
	}
	if rc.M.DecelerationMultiplier < 0 || rc.M.SpeedFloor < 0 {
		return nil, fmt.Errorf("movement: deceleration_multiplier and speed_floor must be positive, got %+v", rc.M)
	}
	if rc.C.Step.Interval <= 0 {
		rc.C.Step.Interval = 1
	}
	for _, v := range config.Vehicles {
		if v.AccelerationRate <= 0 || v.MoveSpeed <= 0 {
			return nil, fmt.Errorf("vehicle %d: acceleration_rate and move_speed must be positive", v.ID)
		}
	}
	return rc, nil
}
