package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/config"
	"gopkg.in/yaml.v2"
)

const sample = `
control:
  step:
    start: 0
    total: 100
    interval: 1
map:
  rows:
    - "....."
    - ".###."
    - "....."
movement:
  speed_floor: 1.5
vehicles:
  - id: 1
    start: {x: 0, y: 0}
    move_speed: 10
    acceleration_rate: 2
    components:
      - {id: wheel_fl, tags: [wheel], hp: 50}
    jobs:
      - {type: goto, target: {x: 4, y: 2}}
      - {type: wait, ticks: 5}
`

func TestRuntimeConfigDefaults(t *testing.T) {
	var c config.Config
	require.NoError(t, yaml.UnmarshalStrict([]byte(sample), &c))
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	assert.Equal(t, 4.0, rc.M.DecelerationMultiplier)
	assert.Equal(t, 1.5, rc.M.SpeedFloor)
	assert.Equal(t, "wheel", rc.M.WheelTag)
	assert.Len(t, rc.All.Vehicles, 1)
	assert.Equal(t, config.Position{X: 4, Y: 2}, rc.All.Vehicles[0].Jobs[0].Target)
	assert.Equal(t, int32(5), rc.All.Vehicles[0].Jobs[1].Ticks)
}

func TestRuntimeConfigRejectsBadVehicle(t *testing.T) {
	c := config.Config{Vehicles: []config.Vehicle{{ID: 7, MoveSpeed: 10}}}
	_, err := config.NewRuntimeConfig(c)
	assert.Error(t, err)
}

func TestUnknownFieldRejected(t *testing.T) {
	var c config.Config
	err := yaml.UnmarshalStrict([]byte("movement:\n  speed_flor: 1\n"), &c)
	assert.Error(t, err)
}
