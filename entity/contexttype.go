package entity

import (
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/clock"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/config"
)

type ITaskContext interface {
	Clock() *clock.Clock
	Grid() IGrid
	Planner() IPlanner
	VehicleManager() IVehicleManager
	RuntimeConfig() *config.RuntimeConfig
}
