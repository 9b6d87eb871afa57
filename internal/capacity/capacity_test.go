package capacity_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sliceback/sliceback/internal/capacity"
)

func TestFreeSpace(t *testing.T) {
	usage, err := capacity.FreeSpace(t.TempDir())
	require.NoError(t, err)
	require.Greater(t, usage.Total, int64(0))
	require.GreaterOrEqual(t, usage.Available, int64(0))
	require.LessOrEqual(t, usage.Available, usage.Total)
}

func TestFreeSpace_InvalidPath(t *testing.T) {
	_, err := capacity.FreeSpace("/this/path/does/not/exist/hopefully")
	require.Error(t, err)
}

func TestEffective_LocalTargetUsesTargetFreeSpace(t *testing.T) {
	dir := t.TempDir()
	want, err := capacity.FreeSpace(dir)
	require.NoError(t, err)

	got := capacity.Effective(true, dir, "", 0)
	require.Equal(t, want.Available, got)
}

func TestEffective_RemoteTargetReservesTenPercentOfScratch(t *testing.T) {
	dir := t.TempDir()
	want, err := capacity.FreeSpace(dir)
	require.NoError(t, err)

	got := capacity.Effective(false, "unused://remote", dir, 0)
	require.Equal(t, want.Available*9/10, got)
}

func TestEffective_MaxSliceMBCapsCapacity(t *testing.T) {
	dir := t.TempDir()
	got := capacity.Effective(true, dir, "", 1)
	require.Equal(t, int64(1*1024*1024), got)
}

func TestEffective_InvalidPathFallsBackToFormatMax(t *testing.T) {
	got := capacity.Effective(true, "/this/path/does/not/exist/hopefully", "", 0)
	require.Equal(t, capacity.FormatMax, got)
}
