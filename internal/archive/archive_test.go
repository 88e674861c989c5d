package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildtrack-data/ethogram/internal/behavior"
	"github.com/wildtrack-data/ethogram/internal/testutil"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "ethogram.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestOpenRunsMigrations(t *testing.T) {
	a := openTestArchive(t)

	n, err := a.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRecordAndCount(t *testing.T) {
	a := openTestArchive(t)

	obs := testutil.Obs(behavior.BehaviorFeeding, 0.9, 1700000000)
	require.NoError(t, a.Record(obs, testutil.MildEnv(1700000000)))

	n, err := a.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordBatch(t *testing.T) {
	a := openTestArchive(t)

	obs := testutil.AlternatingSeq(behavior.BehaviorFeeding, behavior.BehaviorResting, 6, 1700000000, 60)
	envs := make([]behavior.Environment, len(obs))
	for i, o := range obs {
		envs[i] = testutil.MildEnv(o.TimestampUnix)
	}
	require.NoError(t, a.RecordBatch(obs, envs))

	n, err := a.Count()
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	t.Run("length mismatch rejected", func(t *testing.T) {
		assert.Error(t, a.RecordBatch(obs, envs[:2]))
	})
}

func TestHourlyActivity(t *testing.T) {
	a := openTestArchive(t)

	ts := time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC).Unix()
	for i := 0; i < 3; i++ {
		o := testutil.Obs(behavior.BehaviorForaging, 0.9, ts+int64(i))
		o.ActivityLevel = 0.8
		require.NoError(t, a.Record(o, testutil.MildEnv(o.TimestampUnix)))
	}

	activity, counts, err := a.HourlyActivity()
	require.NoError(t, err)
	assert.Equal(t, 3, counts[7])
	assert.InDelta(t, 0.8, activity[7], 1e-9)
	assert.Equal(t, 0, counts[12])
}

func TestMonthlyActivity(t *testing.T) {
	a := openTestArchive(t)

	march := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC).Unix()
	july := time.Date(2026, 7, 10, 10, 0, 0, 0, time.UTC).Unix()
	require.NoError(t, a.Record(testutil.Obs(behavior.BehaviorMoving, 0.9, march), testutil.MildEnv(march)))
	require.NoError(t, a.Record(testutil.Obs(behavior.BehaviorMoving, 0.9, july), testutil.MildEnv(july)))

	_, counts, err := a.MonthlyActivity()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[2], "March is index 2")
	assert.Equal(t, 1, counts[6], "July is index 6")
}
