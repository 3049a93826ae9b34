package snapshot_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/config"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/snapshot"
)

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "save.yaml")
	s, err := snapshot.NewFileStore(path)
	require.NoError(t, err)

	_, ok, err := s.Load(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	want := snapshot.Record{
		Controller: snapshot.State{
			CurrentSpeed:       6.5,
			WasMoving:          true,
			MovementMode:       3,
			PaidCost:           42,
			HandbrakeApplied:   true,
			CurFractionPassed:  0.7,
			PrevFractionPassed: 0.65,
		},
		Progress: snapshot.Progress{
			Position:         config.Position{X: 3, Y: 1},
			Moving:           true,
			PathStart:        config.Position{X: 0, Y: 1},
			PathDest:         config.Position{X: 9, Y: 1},
			Index:            3,
			NextCellCostLeft: 0.25,
			Jobs: []config.Job{
				{Type: "wait", Ticks: 4},
				{Type: "goto", Target: config.Position{X: 2, Y: 2}},
			},
		},
	}
	require.NoError(t, s.Save(ctx, 1, want))
	require.NoError(t, s.Save(ctx, 2, snapshot.Record{Controller: snapshot.State{CurrentSpeed: 1}}))

	// 关闭前不写文件
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, s.Close(ctx))

	reopened, err := snapshot.NewFileStore(path)
	require.NoError(t, err)
	got, ok, err := reopened.Load(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
	_, ok, err = reopened.Load(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStoreCloseWithoutChanges(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "save.yaml")
	s, err := snapshot.NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestNewWithoutConfig(t *testing.T) {
	s, err := snapshot.New(config.Snapshot{})
	assert.NoError(t, err)
	assert.Nil(t, s)
}
