// Package hook implements the Script Hook runner (§4.4/§6): it notifies an
// external program at slice-lifecycle transitions and surfaces its output as
// warnings, grounded in the teacher's exec.CommandContext usage in
// internal/vhd/vhd.go and cmd/migrate_vhd.go.
package hook

import (
	"bufio"
	"context"
	"os/exec"
	"sync"

	"emperror.dev/errors"

	"github.com/sliceback/sliceback/internal/events"
	"github.com/sliceback/sliceback/internal/lifecycle"
)

// Hook is notified at each slice lifecycle transition.
type Hook interface {
	Run(ctx context.Context, phase lifecycle.Phase, archivePath, target, mountPoint string) error
}

// None is a Hook that does nothing, used when no slice_script is configured.
type None struct{}

func (None) Run(context.Context, lifecycle.Phase, string, string, string) error { return nil }

// Script invokes an external program as
// `script <phase> <archive_path> <target> <mount_point_if_local>`, surfacing
// its stdout/stderr as Warning events and waiting for it to exit before
// returning, per spec.md §4.4.
type Script struct {
	Path string
	Bus  *events.Bus
}

// New returns a Script hook, or None if path is empty.
func New(path string, bus *events.Bus) Hook {
	if path == "" {
		return None{}
	}
	return &Script{Path: path, Bus: bus}
}

func (s *Script) Run(ctx context.Context, phase lifecycle.Phase, archivePath, target, mountPoint string) error {
	cmd := exec.CommandContext(ctx, s.Path, string(phase), archivePath, target, mountPoint)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.WrapIff(err, "hook: failed to attach stdout pipe for '%s'", s.Path)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.WrapIff(err, "hook: failed to attach stderr pipe for '%s'", s.Path)
	}

	if err := cmd.Start(); err != nil {
		return errors.WrapIff(err, "hook: failed to start '%s'", s.Path)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go s.surface(&wg, stdout)
	go s.surface(&wg, stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return errors.WrapIff(err, "hook: '%s' exited with an error for phase %s", s.Path, phase)
	}
	return nil
}

func (s *Script) surface(wg *sync.WaitGroup, r interface {
	Read(p []byte) (int, error)
}) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if s.Bus != nil {
			s.Bus.Publish(events.Warning, scanner.Text())
		}
	}
}
