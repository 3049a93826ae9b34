package vehicle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"connectrpc.com/connect"
	"git.fiblab.net/sim/syncer/v3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity"
	"google.golang.org/protobuf/types/known/structpb"
)

// VehicleService 的请求与响应均为google.protobuf.Struct
const (
	VehicleServiceName = "vehicle.v1.VehicleService"

	GetVehicleProcedure          = "/vehicle.v1.VehicleService/GetVehicle"
	AddJobProcedure              = "/vehicle.v1.VehicleService/AddJob"
	BrakeProcedure               = "/vehicle.v1.VehicleService/Brake"
	GetGlobalStatisticsProcedure = "/vehicle.v1.VehicleService/GetGlobalStatistics"
)

// Register 将车辆管理器注册到Sidecar
func (m *VehicleManager) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(VehicleServiceName, m.newHandler)
}

// newHandler 构造VehicleService的http.Handler
func (m *VehicleManager) newHandler(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(GetVehicleProcedure, connect.NewUnaryHandler(GetVehicleProcedure, m.GetVehicle, opts...))
	mux.Handle(AddJobProcedure, connect.NewUnaryHandler(AddJobProcedure, m.AddJob, opts...))
	mux.Handle(BrakeProcedure, connect.NewUnaryHandler(BrakeProcedure, m.Brake, opts...))
	mux.Handle(GetGlobalStatisticsProcedure, connect.NewUnaryHandler(GetGlobalStatisticsProcedure, m.GetGlobalStatistics, opts...))
	return "/" + VehicleServiceName + "/", mux
}

// GetVehicle 获取车辆状态
// 请求：{vehicle_id}
// 返回：最近一次Prepare时的车辆状态（位置、速度、控制模式、急刹标记、部件、提示等）
func (m *VehicleManager) GetVehicle(
	ctx context.Context, in *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	v, err := m.vehicleOf(in.Msg)
	if err != nil {
		return nil, err
	}
	res, err := structpb.NewStruct(statusToMap(v.Snapshot()))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(res), nil
}

// AddJob 追加排队任务，下一步Prepare时生效
// 请求：{vehicle_id, type: goto|wait, x, y, ticks}
func (m *VehicleManager) AddJob(
	ctx context.Context, in *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	v, err := m.vehicleOf(in.Msg)
	if err != nil {
		return nil, err
	}
	var job Job
	switch t := in.Msg.GetFields()["type"].GetStringValue(); t {
	case "goto":
		x, err := int32Field(in.Msg, "x")
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		y, err := int32Field(in.Msg, "y")
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		target := entity.Cell{X: x, Y: y}
		if !m.ctx.Grid().Passable(target) {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("target %v is not passable", target))
		}
		job = Job{Type: JobTypeGoto, Target: target}
	case "wait":
		ticks, err := int32Field(in.Msg, "ticks")
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		if ticks <= 0 {
			return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("ticks must be positive"))
		}
		job = Job{Type: JobTypeWait, Ticks: ticks}
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown job type %q", t))
	}
	v.pushCommand(command{job: &job})
	return connect.NewResponse(&structpb.Struct{}), nil
}

// Brake 要求车辆立即停车并清空任务，下一步Prepare时生效
// 请求：{vehicle_id}
func (m *VehicleManager) Brake(
	ctx context.Context, in *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	v, err := m.vehicleOf(in.Msg)
	if err != nil {
		return nil, err
	}
	v.pushCommand(command{brake: true})
	return connect.NewResponse(&structpb.Struct{}), nil
}

// GetGlobalStatistics 获取全局统计
func (m *VehicleManager) GetGlobalStatistics(
	ctx context.Context, in *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	s := m.Statistics()
	res, err := structpb.NewStruct(map[string]any{
		"num_vehicles":       s.NumVehicles,
		"num_moving":         s.NumMoving,
		"num_legs_completed": s.NumLegsCompleted,
		"num_handbrakes":     s.NumHandbrakes,
		"total_travel_cost":  s.TotalTravelCost,
		"total_moving_ticks": s.TotalMovingTicks,
		"average_speed":      s.AverageSpeed,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(res), nil
}

// vehicleOf 按请求中的vehicle_id查找车辆，错误已转换为connect错误
func (m *VehicleManager) vehicleOf(msg *structpb.Struct) (*Vehicle, error) {
	id, err := int32Field(msg, "vehicle_id")
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	v, err := m.GetOrError(id)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	return v, nil
}

// int32Field 读取整数字段（Struct中的数字均为double）
func int32Field(msg *structpb.Struct, key string) (int32, error) {
	value, ok := msg.GetFields()[key]
	if !ok {
		return 0, fmt.Errorf("missing field %s", key)
	}
	if _, ok := value.GetKind().(*structpb.Value_NumberValue); !ok {
		return 0, fmt.Errorf("field %s is not a number", key)
	}
	n := value.GetNumberValue()
	if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("field %s=%v is not an int32", key, n)
	}
	return int32(n), nil
}

func statusToMap(s Status) map[string]any {
	return map[string]any{
		"id":                s.ID,
		"x":                 s.Position.X,
		"y":                 s.Position.Y,
		"moving":            s.Moving,
		"current_speed":     s.Speed,
		"movement_mode":     s.Mode.String(),
		"paid_cost":         s.PaidCost,
		"is_braking":        s.IsBraking,
		"handbrake_applied": s.HandbrakeApplied,
		"fraction_passed":   s.FractionPassed,
		"nodes_left":        s.NodesLeft,
		"pending_jobs":      s.PendingJobs,
		"wait_left":         s.WaitLeft,
		"legs_completed":    s.LegsCompleted,
		"cells_visited":     s.CellsVisited,
		"travel_cost":       s.TravelCost,
		"moving_ticks":      s.MovingTicks,
		"handbrakes":        s.Handbrakes,
		"components": lo.Map(s.Components, func(c Component, _ int) any {
			return map[string]any{
				"id":     c.ID,
				"tags":   lo.ToAnySlice(c.Tags),
				"hp":     c.HP,
				"max_hp": c.MaxHP,
			}
		}),
		"messages": lo.ToAnySlice(s.Messages),
	}
}
