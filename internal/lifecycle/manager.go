package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"

	"github.com/sliceback/sliceback/internal/capacity"
	"github.com/sliceback/sliceback/internal/config"
	"github.com/sliceback/sliceback/internal/events"
	"github.com/sliceback/sliceback/internal/hook"
	"github.com/sliceback/sliceback/internal/prompt"
	"github.com/sliceback/sliceback/internal/sink"
	"github.com/sliceback/sliceback/internal/slicewriter"
)

// IsLocal reports whether target names a local directory rather than an
// opaque remote location handled by a Sink. Unlike the teacher's adapter
// selection (a fixed choice of LocalBackup vs S3Backup made by the caller),
// this engine decides per-target from its shape: anything carrying a URL
// scheme is remote.
func IsLocal(target string) bool {
	return !strings.Contains(target, "://")
}

// Manager owns the open/add*/close/[upload]/script-hooks sequence for a
// single run's slices, per spec.md §4.4. It is constructed once per run by
// the Archiver Controller and driven through Open, Close, and Rotate.
type Manager struct {
	cfg    *config.Config
	bus    *events.Bus
	hook   hook.Hook
	sink   sink.Sink
	prompt prompt.Prompter

	baseName string
	sliceNum int

	Writer        *slicewriter.Writer
	ArchiveName   string
	SliceCapacity int64
}

// New constructs a Manager and derives this run's base_name from the
// configured target/scratch directory, prefix and a wall-clock timestamp
// captured once, per spec.md §3/§6.
func New(cfg *config.Config, bus *events.Bus, h hook.Hook, s sink.Sink, p prompt.Prompter, now time.Time) *Manager {
	root := cfg.Target
	if !IsLocal(cfg.Target) {
		root = cfg.ScratchDir
	}
	prefix := cfg.FilePrefix
	if prefix == "" {
		prefix = "backup"
	}
	base := filepath.Join(root, fmt.Sprintf("%s_%s", prefix, now.Format("2006.01.02-15.04.05")))

	return &Manager{cfg: cfg, bus: bus, hook: h, sink: s, prompt: p, baseName: base}
}

// mountPoint returns the directory the hook should report as the local
// mount point, which is the target itself for local targets and the scratch
// directory for remote ones.
func (m *Manager) mountPoint() string {
	if IsLocal(m.cfg.Target) {
		return m.cfg.Target
	}
	return m.cfg.ScratchDir
}

// Open starts slice number n+1: it names the archive, opens the tar writer,
// recomputes slice_capacity, runs the slice_init hook, and emits NewSlice.
func (m *Manager) Open(ctx context.Context) error {
	m.sliceNum++
	m.ArchiveName = fmt.Sprintf("%s_%d.tar", m.baseName, m.sliceNum)

	if err := os.MkdirAll(filepath.Dir(m.ArchiveName), 0o755); err != nil {
		return errors.WrapIff(err, "lifecycle: failed to create directory for '%s'", m.ArchiveName)
	}

	w, err := slicewriter.Open(m.ArchiveName, m.cfg.WriteLimitMiB)
	if err != nil {
		return errors.WrapIff(err, "lifecycle: failed to open slice '%s'", m.ArchiveName)
	}
	m.Writer = w

	m.SliceCapacity = capacity.Effective(IsLocal(m.cfg.Target), m.cfg.Target, m.cfg.ScratchDir, m.cfg.MaxSliceMegabytes)
	m.bus.Publish(events.TargetCapacity, m.SliceCapacity)

	if err := m.hook.Run(ctx, PhaseSliceInit, m.ArchiveName, m.cfg.Target, m.mountPoint()); err != nil {
		m.bus.Publish(events.Warning, err.Error())
	}

	m.bus.Publish(events.NewSlice, m.sliceNum)
	return nil
}

// Close finalizes the current slice: closes the tar encoder, runs
// slice_closed, then either uploads (remote target, with the interactive
// retry policy of spec.md §4.4) or treats the slice as already in place
// (local target), running slice_finished in both cases. The scratch file is
// deleted after upload regardless of outcome.
func (m *Manager) Close(ctx context.Context) error {
	if err := m.Writer.Close(); err != nil {
		return errors.WrapIff(err, "lifecycle: failed to close slice '%s'", m.ArchiveName)
	}

	if err := m.hook.Run(ctx, PhaseSliceClosed, m.ArchiveName, m.cfg.Target, m.mountPoint()); err != nil {
		m.bus.Publish(events.Warning, err.Error())
	}

	if IsLocal(m.cfg.Target) {
		if err := m.hook.Run(ctx, PhaseSliceFinished, m.ArchiveName, m.cfg.Target, m.mountPoint()); err != nil {
			m.bus.Publish(events.Warning, err.Error())
		}
		return nil
	}

	target := m.cfg.Target
	for {
		err := m.sink.Upload(ctx, m.ArchiveName, target)
		if err == nil {
			break
		}
		m.bus.Publish(events.Warning, err.Error())

		if !m.cfg.Interactive {
			os.Remove(m.ArchiveName)
			return errors.WrapIf(err, "lifecycle: upload failed in unattended mode")
		}

		action, newTarget := m.prompt.UploadFailed()
		switch action {
		case ActionRetry:
			continue
		case ActionChangeTarget:
			target = newTarget
			continue
		default:
			os.Remove(m.ArchiveName)
			return errors.WrapIf(err, "lifecycle: upload cancelled by user")
		}
	}

	if err := m.hook.Run(ctx, PhaseSliceFinished, m.ArchiveName, target, m.mountPoint()); err != nil {
		m.bus.Publish(events.Warning, err.Error())
	}

	os.Remove(m.ArchiveName)
	return nil
}

// Abort deletes the currently open slice file without running any further
// hooks, for the cancellation path of spec.md §5.
func (m *Manager) Abort() error {
	if m.Writer == nil {
		return nil
	}
	path := m.ArchiveName
	_ = m.Writer.Close()
	return os.Remove(path)
}

// Rotate closes the current slice and opens the next one, per the
// rotate_slice() algorithm of spec.md §4.6: SliceProgress(100) is published
// by the caller before invoking Rotate (it owns FileProgress/SliceProgress
// emission cadence); Rotate itself handles the media-change confirmation
// gate. cancelled is true if an interactive media-change request was
// refused.
func (m *Manager) Rotate(ctx context.Context) (cancelled bool, err error) {
	if err := m.Close(ctx); err != nil {
		return false, err
	}

	if m.cfg.Interactive && m.cfg.MediaNeedsChange && IsLocal(m.cfg.Target) {
		if !m.prompt.MediaChange(m.sliceNum + 1) {
			return true, nil
		}
	}

	if err := m.Open(ctx); err != nil {
		return false, err
	}
	return false, nil
}

// SliceNum returns the 1-based index of the currently open slice.
func (m *Manager) SliceNum() int { return m.sliceNum }
