package lifecycle_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sliceback/sliceback/internal/config"
	"github.com/sliceback/sliceback/internal/events"
	"github.com/sliceback/sliceback/internal/hook"
	"github.com/sliceback/sliceback/internal/lifecycle"
	"github.com/sliceback/sliceback/internal/prompt"
	"github.com/sliceback/sliceback/internal/sink"
)

func TestIsLocal(t *testing.T) {
	require.True(t, lifecycle.IsLocal("/mnt/backups"))
	require.False(t, lifecycle.IsLocal("s3://bucket/path"))
}

func newTestConfig(t *testing.T, target string) *config.Config {
	c, err := config.New()
	require.NoError(t, err)
	c.Target = target
	c.ScratchDir = t.TempDir()
	c.FilePrefix = "test"
	return c
}

func TestManager_OpenNamesSliceSequentially(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	bus := events.NewBus()

	m := lifecycle.New(cfg, bus, hook.None{}, sink.Local{}, prompt.Noninteractive{}, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))

	require.NoError(t, m.Open(context.Background()))
	require.Contains(t, m.ArchiveName, "test_2024.05.06-07.08.09_1.tar")
	require.Equal(t, 1, m.SliceNum())

	require.NoError(t, m.Close(context.Background()))

	require.NoError(t, m.Open(context.Background()))
	require.Contains(t, m.ArchiveName, "_2.tar")
	require.Equal(t, 2, m.SliceNum())
	require.NoError(t, m.Close(context.Background()))
}

func TestManager_LocalTargetLeavesSliceInPlace(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	bus := events.NewBus()
	m := lifecycle.New(cfg, bus, hook.None{}, sink.Local{}, prompt.Noninteractive{}, time.Now().Add(0))

	require.NoError(t, m.Open(context.Background()))
	path := m.ArchiveName
	require.NoError(t, m.Close(context.Background()))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestManager_RemoteTargetUploadsAndDeletesScratch(t *testing.T) {
	scratch := t.TempDir()
	cfg := newTestConfig(t, "fake://remote/path")
	cfg.ScratchDir = scratch
	bus := events.NewBus()

	var uploadedFrom string
	fs := fakeSink{fn: func(ctx context.Context, localFile, target string) error {
		uploadedFrom = localFile
		return nil
	}}

	m := lifecycle.New(cfg, bus, hook.None{}, fs, prompt.Noninteractive{}, time.Now())
	require.NoError(t, m.Open(context.Background()))
	path := m.ArchiveName
	require.NoError(t, m.Close(context.Background()))

	require.Equal(t, path, uploadedFrom)
	_, err := os.Stat(path)
	require.Error(t, err)
}

func TestManager_RemoteUploadFailsInUnattendedMode(t *testing.T) {
	cfg := newTestConfig(t, "fake://remote/path")
	bus := events.NewBus()
	fs := fakeSink{fn: func(ctx context.Context, localFile, target string) error {
		return errFake
	}}

	m := lifecycle.New(cfg, bus, hook.None{}, fs, prompt.Noninteractive{}, time.Now())
	require.NoError(t, m.Open(context.Background()))
	err := m.Close(context.Background())
	require.Error(t, err)
}

func TestManager_RotateOpensNextSlice(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	bus := events.NewBus()
	m := lifecycle.New(cfg, bus, hook.None{}, sink.Local{}, prompt.Noninteractive{}, time.Now())

	require.NoError(t, m.Open(context.Background()))
	first := m.ArchiveName

	cancelled, err := m.Rotate(context.Background())
	require.NoError(t, err)
	require.False(t, cancelled)
	require.NotEqual(t, first, m.ArchiveName)
	require.Equal(t, 2, m.SliceNum())
	require.NoError(t, m.Close(context.Background()))
}

func TestManager_RotateCancelsWhenMediaChangeRefused(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	cfg.Interactive = true
	cfg.MediaNeedsChange = true
	bus := events.NewBus()

	m := lifecycle.New(cfg, bus, hook.None{}, sink.Local{}, refusePrompter{}, time.Now())
	require.NoError(t, m.Open(context.Background()))

	cancelled, err := m.Rotate(context.Background())
	require.NoError(t, err)
	require.True(t, cancelled)
}

func TestManager_Abort_DeletesOpenSlice(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(t, dir)
	bus := events.NewBus()
	m := lifecycle.New(cfg, bus, hook.None{}, sink.Local{}, prompt.Noninteractive{}, time.Now())

	require.NoError(t, m.Open(context.Background()))
	path := m.ArchiveName
	_, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, m.Abort())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

var errFake = errFakeType{}

type errFakeType struct{}

func (errFakeType) Error() string { return "fake upload error" }

type fakeSink struct {
	fn func(ctx context.Context, localFile, target string) error
}

func (f fakeSink) Upload(ctx context.Context, localFile, target string) error {
	return f.fn(ctx, localFile, target)
}

type refusePrompter struct {
	prompt.Noninteractive
}

func (refusePrompter) MediaChange(int) bool { return false }

type recordingHook struct {
	mountPoints *[]string
}

func (h recordingHook) Run(_ context.Context, _ lifecycle.Phase, _, _, mountPoint string) error {
	*h.mountPoints = append(*h.mountPoints, mountPoint)
	return nil
}

func TestManager_MountPointForRemoteIsScratch(t *testing.T) {
	cfg := newTestConfig(t, "fake://remote")
	bus := events.NewBus()
	var mountPoints []string
	m := lifecycle.New(cfg, bus, recordingHook{&mountPoints}, fakeSink{fn: func(context.Context, string, string) error { return nil }}, prompt.Noninteractive{}, time.Now())
	require.NoError(t, m.Open(context.Background()))
	require.NoError(t, m.Close(context.Background()))
	require.Equal(t, []string{cfg.ScratchDir, cfg.ScratchDir, cfg.ScratchDir}, mountPoints)
}
