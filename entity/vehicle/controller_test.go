package vehicle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/entity/vehicle/route"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/config"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/snapshot"
)

// 测试用的一维道路：沿X轴，每步代价为1

func unitCost(from, to entity.Cell) float64 {
	if from == to {
		return 0
	}
	return 1
}

func lineRoute(from, to int32) entity.IRoute {
	step := int32(1)
	if to < from {
		step = -1
	}
	nodes := []entity.Cell{{X: from}}
	for x := from; x != to; {
		x += step
		nodes = append(nodes, entity.Cell{X: x})
	}
	return route.NewRoute(nodes, unitCost)
}

type linePlanner struct {
	calls       int
	unreachable map[int32]bool
}

func (p *linePlanner) FindPath(start, dest entity.Cell) (entity.IRoute, error) {
	p.calls++
	if p.unreachable[dest.X] {
		return nil, errors.New("unreachable")
	}
	return lineRoute(start.X, dest.X), nil
}

type fakeAgent struct {
	moveSpeed  float64
	acc        float64
	components []*Component

	moving    bool
	path      entity.IRoute
	position  entity.Cell
	nodesLeft int
	nextTotal float64
	nextLeft  float64
	jobs      []Job
}

func (a *fakeAgent) ID() int32                  { return 7 }
func (a *fakeAgent) MoveSpeed() float64         { return a.moveSpeed }
func (a *fakeAgent) AccelerationRate() float64  { return a.acc }
func (a *fakeAgent) Components() []*Component   { return a.components }
func (a *fakeAgent) Moving() bool               { return a.moving }
func (a *fakeAgent) CurPath() entity.IRoute     { return a.path }
func (a *fakeAgent) Position() entity.Cell      { return a.position }
func (a *fakeAgent) NodesLeft() int             { return a.nodesLeft }
func (a *fakeAgent) NextCellCostTotal() float64 { return a.nextTotal }
func (a *fakeAgent) NextCellCostLeft() float64  { return a.nextLeft }
func (a *fakeAgent) PendingJobs() []Job         { return a.jobs }

// moveTo 把车辆放到路径第i个路点上
func (a *fakeAgent) moveTo(i int) {
	a.position = a.path.Nodes()[i]
	a.nodesLeft = a.path.Len() - 1 - i
}

type fakeSink struct {
	sounds   []*brakingSound
	damage   map[string]int32
	messages []string
	aborts   int
}

func (s *fakeSink) StartBrakingSound() Sustainer {
	snd := &brakingSound{}
	s.sounds = append(s.sounds, snd)
	return snd
}

func (s *fakeSink) ApplyDamage(componentID string, amount int32) {
	if s.damage == nil {
		s.damage = make(map[string]int32)
	}
	s.damage[componentID] += amount
}

func (s *fakeSink) Message(key string, vehicleID int32) {
	s.messages = append(s.messages, key)
}

func (s *fakeSink) AbortMotion() {
	s.aborts++
}

var defaultMovement = config.Movement{DecelerationMultiplier: 4, SpeedFloor: 2.5, WheelTag: "wheel"}

func newTestController(a *fakeAgent) (*controller, *fakeSink, *linePlanner) {
	sink := &fakeSink{}
	planner := &linePlanner{unreachable: map[int32]bool{}}
	c := newController(a, sink, planner, defaultMovement)
	return c, sink, planner
}

func TestAccelerationRamp(t *testing.T) {
	a := &fakeAgent{moveSpeed: 10, acc: 2, moving: true, path: lineRoute(0, 1000)}
	a.moveTo(0)
	c, _, _ := newTestController(a)
	c.onMoveStart()
	for n := 1; n <= 8; n++ {
		c.tick()
		assert.Equal(t, min(2*float64(n), 10), c.currentSpeed, "tick %d", n)
	}
	assert.Equal(t, MovementModeCurrentSpeed, c.mode)
}

func TestDecelerationThreshold(t *testing.T) {
	// 10 / (2*4) / 100 = 0.0125，已行驶比例超过0.9875后减速
	a := &fakeAgent{moveSpeed: 10, acc: 2, moving: true, path: lineRoute(0, 100)}
	a.moveTo(98)
	c, _, _ := newTestController(a)
	c.onMoveStart()

	c.paidCost = 98
	c.tick()
	assert.Equal(t, MovementModeAccelerate, c.mode)
	assert.InDelta(t, 0.98, c.curFractionPassed, 1e-9)

	a.moveTo(99)
	c.paidCost = 99
	c.tick()
	assert.Equal(t, MovementModeDecelerate, c.mode)

	// 进入减速后本次行驶内不再加速
	c.paidCost = 98
	c.tick()
	assert.Equal(t, MovementModeDecelerate, c.mode)
}

func TestEmergencyBrakeLatch(t *testing.T) {
	a := &fakeAgent{
		moveSpeed: 20,
		acc:       1,
		moving:    true,
		path:      lineRoute(0, 1),
		components: []*Component{
			{ID: "wheel-l", Tags: []string{"wheel"}, HP: 10, MaxHP: 10},
			{ID: "wheel-r", Tags: []string{"wheel", "steer"}, HP: 10, MaxHP: 10},
			{ID: "engine", Tags: []string{"engine"}, HP: 10, MaxHP: 10},
		},
	}
	a.moveTo(0)
	c, sink, _ := newTestController(a)
	c.onMoveStart()
	c.currentSpeed = 20
	// 全程代价1，减速区比例 20/4/1 = 5 > 1；已过半程，进入减速
	c.paidCost = 0.6

	c.tick()
	require.Len(t, sink.sounds, 1)
	assert.True(t, c.isBraking)
	assert.True(t, c.handbrakeApplied)
	// 16 / slowdownMultiplier(5)
	assert.InDelta(t, 3.2, c.currentSpeed, 1e-9)
	assert.Equal(t, map[string]int32{"wheel-l": 5, "wheel-r": 5}, sink.damage)
	assert.Equal(t, []string{MessageHandbrakeWarning}, sink.messages)
	assert.Equal(t, int32(1), sink.sounds[0].maintained)

	// 回落到速度下限后复位，不会再次触发
	c.tick()
	assert.Equal(t, 2.5, c.currentSpeed)
	assert.False(t, c.handbrakeApplied)
	c.tick()
	assert.Equal(t, 2.5, c.currentSpeed)
	assert.Len(t, sink.sounds, 1)
	assert.Equal(t, map[string]int32{"wheel-l": 5, "wheel-r": 5}, sink.damage)
	assert.Len(t, sink.messages, 1)
	assert.True(t, c.isBraking)
	assert.Equal(t, int32(3), sink.sounds[0].maintained)

	c.onMoveStop()
	assert.False(t, c.isBraking)
	assert.True(t, sink.sounds[0].Ended())
}

func TestNoHandbrakeWithStepsLeft(t *testing.T) {
	a := &fakeAgent{moveSpeed: 20, acc: 1, moving: true, path: lineRoute(0, 2),
		components: []*Component{{ID: "wheel", Tags: []string{"wheel"}}}}
	a.moveTo(0)
	c, sink, _ := newTestController(a)
	c.onMoveStart()
	c.currentSpeed = 20
	c.paidCost = 1.2

	// slowdownMultiplier = 20/4/2 = 2.5，但还剩2个路点，只平稳减速
	c.tick()
	assert.Equal(t, MovementModeDecelerate, c.mode)
	assert.False(t, c.handbrakeApplied)
	assert.Empty(t, sink.sounds)
	assert.Equal(t, 16.0, c.currentSpeed)
}

func TestBrakeRequestForcesHandbrake(t *testing.T) {
	a := &fakeAgent{moveSpeed: 20, acc: 1, moving: true, path: lineRoute(0, 2),
		components: []*Component{{ID: "front", Tags: []string{"wheel"}, HP: 10, MaxHP: 10}}}
	a.moveTo(0)
	c, sink, _ := newTestController(a)
	c.onMoveStart()
	c.currentSpeed = 20

	// 剩余代价2，slowdownMultiplier = 20/4/2 = 2.5
	c.onBrakeRequest()
	assert.True(t, c.handbrakeApplied)
	assert.True(t, c.isBraking)
	assert.Equal(t, map[string]int32{"front": 3}, sink.damage)
	assert.InDelta(t, 16/2.5, c.currentSpeed, 1e-9)
	assert.Equal(t, MovementModeDecelerate, c.mode)

	// 没有在行驶时忽略
	a.moving = false
	c.onBrakeRequest()
	assert.Len(t, sink.sounds, 1)
}

func TestZeroCostAbort(t *testing.T) {
	a := &fakeAgent{moveSpeed: 10, acc: 2, moving: true, path: lineRoute(0, 2)}
	a.moveTo(2)
	c, sink, _ := newTestController(a)
	c.onMoveStart()
	c.currentSpeed = 5
	c.paidCost = 2

	c.tick()
	assert.Equal(t, 1, sink.aborts)
	assert.Equal(t, 5.0, c.currentSpeed)
	assert.Equal(t, MovementModeAccelerate, c.mode)
	assert.Empty(t, sink.sounds)
}

func TestRouteRegressionForcesDeceleration(t *testing.T) {
	a := &fakeAgent{moveSpeed: 20, acc: 1, moving: true, path: lineRoute(0, 4)}
	a.moveTo(1)
	c, _, _ := newTestController(a)
	c.onMoveStart()
	c.currentSpeed = 3
	c.paidCost = 0.4
	c.prevFractionPassed = 0.4

	// 20/4/4 > 1，已行驶0.1 <= 0.5，但进度倒退
	c.tick()
	assert.Equal(t, MovementModeDecelerate, c.mode)
	assert.InDelta(t, 0.1, c.prevFractionPassed, 1e-9)
}

func TestShortTripAcceleratesUntilHalfway(t *testing.T) {
	a := &fakeAgent{moveSpeed: 20, acc: 1, moving: true, path: lineRoute(0, 4)}
	a.moveTo(0)
	c, _, _ := newTestController(a)
	c.onMoveStart()

	c.paidCost = 2
	c.tick()
	assert.Equal(t, MovementModeAccelerate, c.mode)
	assert.Equal(t, 1.0, c.currentSpeed)

	a.moveTo(2)
	c.paidCost = 3
	c.tick()
	assert.Equal(t, MovementModeDecelerate, c.mode)
	assert.Equal(t, 1.0, c.currentSpeed)
}

func TestIdleTickEndsBraking(t *testing.T) {
	a := &fakeAgent{moveSpeed: 10, acc: 2}
	c, _, _ := newTestController(a)
	c.onMoveStart()
	snd := &brakingSound{}
	c.brakingSound = snd
	c.isBraking = true
	c.prevFractionPassed = 0.7

	c.tick()
	assert.False(t, c.wasMoving)
	assert.False(t, c.isBraking)
	assert.True(t, snd.Ended())
	assert.Equal(t, 0.0, c.prevFractionPassed)
}

func TestNotTickingDoesNothing(t *testing.T) {
	a := &fakeAgent{moveSpeed: 10, acc: 2, moving: true, path: lineRoute(0, 10)}
	c, _, _ := newTestController(a)
	c.tick()
	assert.Equal(t, 0.0, c.currentSpeed)
	assert.Equal(t, MovementModeStarting, c.mode)
}

func TestMoveStartResetIsIdempotent(t *testing.T) {
	a := &fakeAgent{moveSpeed: 10, acc: 2, moving: true, path: lineRoute(0, 3), jobs: []Job{
		{Type: JobTypeGoto, Target: entity.Cell{X: 6}},
	}}
	c, _, _ := newTestController(a)
	for i := 0; i < 2; i++ {
		c.totalRemainingCostWithLookahead()
		c.paidCost = 12
		c.mode = MovementModeDecelerate
		c.handbrakeApplied = true
		c.curFractionPassed = 0.9
		c.currentSpeed = 4
		c.wasMoving = false

		c.onMoveStart()
		assert.Equal(t, 0.0, c.paidCost)
		assert.Equal(t, MovementModeAccelerate, c.mode)
		assert.False(t, c.handbrakeApplied)
		assert.Equal(t, 0.0, c.curFractionPassed)
		assert.Equal(t, 0, c.cache.Len())
		assert.Equal(t, 0.0, c.currentSpeed)
		assert.True(t, c.ticking)
	}

	// 连续行驶时保留速度
	c.wasMoving = true
	c.currentSpeed = 4
	c.onMoveStart()
	assert.Equal(t, 4.0, c.currentSpeed)
}

func TestSpeedStaysWithinBounds(t *testing.T) {
	a := &fakeAgent{moveSpeed: 6, acc: 1.5, moving: true, path: lineRoute(0, 30)}
	a.moveTo(0)
	c, sink, _ := newTestController(a)
	c.onMoveStart()
	for i := 0; i < 30; i++ {
		c.tick()
		require.GreaterOrEqual(t, c.currentSpeed, 0.0)
		require.LessOrEqual(t, c.currentSpeed, a.moveSpeed)
		if c.mode == MovementModeDecelerate {
			require.GreaterOrEqual(t, c.currentSpeed, c.speedFloor)
		}
		// 每步前进一格
		c.payCost(1)
		a.moveTo(min(i+1, 29))
	}
	assert.Zero(t, sink.aborts)
}

func TestStateRestore(t *testing.T) {
	a := &fakeAgent{moveSpeed: 10, acc: 2}
	c, _, _ := newTestController(a)
	c.currentSpeed = 6
	c.wasMoving = true
	c.mode = MovementModeDecelerate
	c.paidCost = 17
	c.isBraking = true
	c.handbrakeApplied = true
	c.curFractionPassed = 0.8
	c.prevFractionPassed = 0.75
	s := c.state()

	restored, _, _ := newTestController(a)
	restored.restore(s, true)
	assert.Equal(t, s, restored.state())
	assert.True(t, restored.ticking)

	s.CurrentSpeed = -1
	s.MovementMode = 42
	s.CurFractionPassed = 3
	restored.restore(s, true)
	assert.Equal(t, 0.0, restored.currentSpeed)
	assert.Equal(t, MovementModeDecelerate, restored.mode)
	assert.Equal(t, 1.0, restored.curFractionPassed)

	// 速度不超过期望速度
	s.CurrentSpeed = 50
	restored.restore(s, true)
	assert.Equal(t, 10.0, restored.currentSpeed)
}

func TestStateRestoreWithoutMotion(t *testing.T) {
	a := &fakeAgent{moveSpeed: 10, acc: 2}
	c, _, _ := newTestController(a)
	c.restore(snapshot.State{
		CurrentSpeed:       8,
		WasMoving:          true,
		MovementMode:       int32(MovementModeCurrentSpeed),
		IsBraking:          true,
		HandbrakeApplied:   true,
		PrevFractionPassed: 0.6,
	}, false)
	assert.False(t, c.ticking)
	assert.False(t, c.wasMoving)
	assert.Equal(t, 0.0, c.currentSpeed)
	assert.Equal(t, MovementModeStarting, c.mode)
	assert.False(t, c.isBraking)
	assert.False(t, c.handbrakeApplied)
	assert.Equal(t, 0.0, c.prevFractionPassed)

	// 下一次行驶从0加速
	a.moving = true
	a.path = lineRoute(0, 40)
	a.moveTo(0)
	c.onMoveStart()
	c.tick()
	assert.Equal(t, 2.0, c.currentSpeed)
	assert.Equal(t, MovementModeAccelerate, c.mode)
}

// stoppingSink 中止行驶时像真实的路径跟随者一样触发停止事件
type stoppingSink struct {
	fakeSink
	agent *fakeAgent
	c     *controller
}

func (s *stoppingSink) AbortMotion() {
	s.fakeSink.AbortMotion()
	s.agent.moving = false
	s.c.onMoveStop()
}

func TestAbortThenNextEpisodeAccelerates(t *testing.T) {
	// 两次行驶的减速区比例都大于1（20/4/2、20/4/4），会检查进度是否倒退
	a := &fakeAgent{moveSpeed: 20, acc: 1, moving: true, path: lineRoute(0, 2)}
	a.moveTo(2)
	sink := &stoppingSink{agent: a}
	c := newController(a, sink, &linePlanner{unreachable: map[int32]bool{}}, defaultMovement)
	sink.c = c
	c.onMoveStart()
	c.currentSpeed = 5
	c.paidCost = 2

	c.tick()
	require.Equal(t, 1, sink.aborts)
	assert.False(t, c.ticking)
	assert.Equal(t, 0.0, c.prevFractionPassed)

	a.moving = true
	a.path = lineRoute(0, 4)
	a.moveTo(0)
	c.onMoveStart()
	for n := 1; n <= 2; n++ {
		c.tick()
		assert.Equal(t, MovementModeAccelerate, c.mode, "tick %d", n)
		assert.Equal(t, float64(n), c.currentSpeed, "tick %d", n)
		c.payCost(1)
		a.moveTo(n)
	}
}
