// Package archiver implements the Archiver Controller and the Traversal &
// Filter component (spec.md §4.5/§4.6): the top-level state machine that
// walks the configured include roots, routes each entry to the raw or
// compressed file-add path, rotates slices on capacity overflow, and
// propagates cancellation. Grounded in the teacher's server/backup.Archive
// traversal (which walks a file list into a single tar.gz) and
// server/filesystem/archive.go's godirwalk-driven walk, generalized here to
// multiple include roots, per-slice rotation and per-file compression.
package archiver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	"github.com/google/uuid"
	"github.com/karrick/godirwalk"

	"github.com/sliceback/sliceback/internal/compress"
	"github.com/sliceback/sliceback/internal/config"
	"github.com/sliceback/sliceback/internal/events"
	"github.com/sliceback/sliceback/internal/hook"
	"github.com/sliceback/sliceback/internal/lifecycle"
	"github.com/sliceback/sliceback/internal/progress"
	"github.com/sliceback/sliceback/internal/prompt"
	"github.com/sliceback/sliceback/internal/sink"
)

// blockSize and yieldEvery implement the suspension-point cadence of §5:
// every 8 KiB block is a potential yield point, and ctx is actually
// re-checked every 50 of them (~400 KiB); the controller's own cancelled
// flag is checked before every block.
const (
	blockSize = 8 * 1024
	yieldEvery = 50
)

// Outcome is the user-visible end-of-run result, per spec.md §7: exactly one
// of Success, SuccessSkipped, or Aborted.
type Outcome int

const (
	Success Outcome = iota
	SuccessSkipped
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case SuccessSkipped:
		return "success (files skipped)"
	default:
		return "aborted"
	}
}

// Result summarizes a finished run.
type Result struct {
	Outcome    Outcome
	TotalBytes int64
	TotalFiles int
	Slices     int
}

// errCancelled is returned internally by the traversal/add paths to unwind
// to Run once c.cancelled has been set; it is never returned to a caller.
var errCancelled = errors.New("archiver: run cancelled")

// Controller is the top-level state machine coordinating traversal, slice
// transitions, cancellation and progress emission, per spec.md §4.6. A
// Controller is constructed once per run and is not reused afterward.
type Controller struct {
	cfg     *config.Config
	bus     *events.Bus
	mgr     *lifecycle.Manager
	prompt  prompt.Prompter
	codec   compress.Codec

	// MaxEntrySize is the data-format upper bound a single archive entry's
	// declared size may not exceed, per spec.md §4.1 rule 3 and the
	// OversizeError disposition of §7. Defaults to capacity.FormatMax;
	// exported so tests can exercise the oversize-skip path without
	// materializing an enormous file.
	MaxEntrySize int64

	excludes map[string]struct{}

	cancelled    atomic.Bool
	skippedFiles bool
	totalBytes   int64
	totalFiles   int
}

// New constructs a Controller for a single run. h, s and p are the Hook,
// Sink and Prompter collaborators described in spec.md §6; pass hook.None{},
// a sink.Local{} (or other Sink) and prompt.Noninteractive{} for an
// unattended run with no script hook.
func New(cfg *config.Config, bus *events.Bus, h hook.Hook, s sink.Sink, p prompt.Prompter) *Controller {
	return &Controller{
		cfg:          cfg,
		bus:          bus,
		prompt:       p,
		codec:        compress.Select(cfg.CompressFiles),
		MaxEntrySize: formatMax,
		mgr:          lifecycle.New(cfg, bus, h, s, p, time.Now()),
	}
}

// formatMax mirrors capacity.FormatMax without importing capacity just for
// this constant (archiver only needs it as Controller's default ceiling;
// capacity.Effective already enforces it when deriving slice_capacity).
const formatMax int64 = 1<<63 - 1

// Cancel requests cancellation. Per spec.md §5 this is sticky and
// cooperative: it is observed at the next yield point, not synchronously.
func (c *Controller) Cancel() { c.cancelled.Store(true) }

func (c *Controller) isCancelled() bool { return c.cancelled.Load() }

// Run executes the Idle -> Running -> Finishing|Cancelled -> Idle state
// machine of spec.md §4.6 against cfg.Includes, honoring cfg.Excludes.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	if err := c.cfg.Validate(); err != nil {
		return Result{Outcome: Aborted}, err
	}

	c.excludes = c.resolveExcludes()
	c.bus.Publish(events.Logging, fmt.Sprintf("starting run: target=%s compression=%s", c.cfg.Target, c.codec))

	// Running.Open, with the open-fails/retry=yes/no branches of the state
	// table.
	for {
		if err := c.mgr.Open(ctx); err == nil {
			break
		} else {
			c.bus.Publish(events.Warning, err.Error())
			if c.cfg.Interactive && c.prompt.RetryOpen(c.mgr.ArchiveName) {
				continue
			}
			return Result{Outcome: Aborted}, err
		}
	}

	// Running.Adding, across every include root, until traversal completes
	// or cancellation/a fatal error unwinds the run.
	var runErr error
runLoop:
	for _, include := range c.cfg.Includes {
		if err := c.addTree(ctx, include); err != nil {
			if errors.Is(err, errCancelled) || c.isCancelled() {
				runErr = errCancelled
			} else {
				runErr = err
			}
			break runLoop
		}
	}

	if runErr != nil {
		_ = c.mgr.Abort()
		if errors.Is(runErr, errCancelled) {
			return Result{Outcome: Aborted, TotalBytes: c.totalBytes, TotalFiles: c.totalFiles, Slices: c.mgr.SliceNum()}, nil
		}
		return Result{Outcome: Aborted, TotalBytes: c.totalBytes, TotalFiles: c.totalFiles}, runErr
	}

	// Finishing: close out the last open slice.
	if err := c.mgr.Close(ctx); err != nil {
		return Result{Outcome: Aborted, TotalBytes: c.totalBytes, TotalFiles: c.totalFiles}, err
	}

	outcome := Success
	if c.skippedFiles {
		outcome = SuccessSkipped
	}
	return Result{Outcome: outcome, TotalBytes: c.totalBytes, TotalFiles: c.totalFiles, Slices: c.mgr.SliceNum()}, nil
}

// resolveExcludes normalizes cfg.Excludes to absolute, cleaned paths for
// O(1) lookup. The data model in spec.md §3 keeps separate exclude_dirs and
// exclude_files sets so each traversal step only consults the set relevant
// to the entry's type; since path identity alone determines membership
// here, both collapse to a single set without changing observable
// behavior.
func (c *Controller) resolveExcludes() map[string]struct{} {
	set := make(map[string]struct{}, len(c.cfg.Excludes))
	for _, e := range c.cfg.Excludes {
		abs, err := filepath.Abs(strings.TrimRight(e, string(filepath.Separator)))
		if err != nil {
			continue
		}
		set[filepath.Clean(abs)] = struct{}{}
	}
	return set
}

// addTree recursively visits root (a configured include path), per the
// traversal rules of spec.md §4.5.
func (c *Controller) addTree(ctx context.Context, root string) error {
	abs, err := filepath.Abs(strings.TrimRight(root, string(filepath.Separator)))
	if err != nil {
		return errors.WrapIff(err, "archiver: failed to resolve include root '%s'", root)
	}
	return c.visit(ctx, filepath.Clean(abs))
}

// visit implements §4.5 rules 1-6 for a single path.
func (c *Controller) visit(ctx context.Context, path string) error {
	if c.isCancelled() {
		return errCancelled
	}

	if _, excluded := c.excludes[path]; excluded {
		return nil
	}
	if c.isOwnArchive(path) {
		return nil
	}

	info, err := os.Lstat(path)
	if err != nil {
		c.warnUnreadable(path, err)
		return nil
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return c.addSymlink(path, info)
	case info.IsDir():
		return c.addDir(ctx, path, info)
	default:
		return c.addFile(ctx, path, info)
	}
}

// isOwnArchive implements §4.5 rule 2: never archive the slice currently
// being written, compared by cleaned absolute path equivalence (the teacher
// pack's equivalent of kbackup's canonical QFileInfo comparison, per
// SPEC_FULL.md §12).
func (c *Controller) isOwnArchive(path string) bool {
	archive, err := filepath.Abs(c.mgr.ArchiveName)
	if err != nil {
		return false
	}
	return filepath.Clean(archive) == path
}

// addDir writes a pre-order directory entry then recurses into its
// children, including hidden entries, per §4.5 rule 5. godirwalk.ReadDirents
// is used purely for its fast, allocation-light directory listing (the
// recursion itself is driven by visit so pre-order write-then-descend and
// per-entry exclude/cancellation checks apply uniformly, matching the
// teacher's own use of godirwalk for archive traversal in
// server/filesystem/archive.go).
func (c *Controller) addDir(ctx context.Context, path string, info os.FileInfo) error {
	if err := c.mgr.Writer.WriteDir(path, metaFromInfo(info)); err != nil {
		return c.failErr(err)
	}

	dirents, err := godirwalk.ReadDirents(path, nil)
	if err != nil {
		c.warnUnreadable(path, err)
		return nil
	}

	for _, de := range dirents {
		if c.isCancelled() {
			return errCancelled
		}
		name := de.Name()
		if name == "." || name == ".." {
			continue
		}
		if err := c.visit(ctx, filepath.Join(path, name)); err != nil {
			return err
		}
	}
	return nil
}

// addSymlink archives a symlink entry preserving its target without
// dereferencing it, per §4.5 rule 4.
func (c *Controller) addSymlink(path string, info os.FileInfo) error {
	target, err := os.Readlink(path)
	if err != nil {
		c.warnUnreadable(path, err)
		return nil
	}
	if err := c.mgr.Writer.WriteSymlink(path, target, metaFromInfo(info)); err != nil {
		return c.failErr(err)
	}
	return nil
}

// addFile routes a regular file to the raw or compressed add path per
// spec.md §4.6, after the large-file guard of rule 3.
func (c *Controller) addFile(ctx context.Context, path string, info os.FileInfo) error {
	if info.Size() > c.MaxEntrySize {
		c.warnOversize(path)
		return nil
	}
	if c.codec == compress.None {
		return c.addFileRaw(ctx, path, info)
	}
	return c.addFileCompressed(ctx, path, info)
}

// addFileRaw implements §4.6 step 1: stream the file directly into the
// current slice, rotating first if it would overflow slice_capacity.
func (c *Controller) addFileRaw(ctx context.Context, path string, info os.FileInfo) error {
	f, err := os.Open(path)
	if err != nil {
		c.warnUnreadable(path, err)
		return nil
	}
	defer f.Close()

	size := info.Size()
	if err := c.rotateIfNeeded(ctx, size); err != nil {
		return err
	}

	meta := metaFromInfo(info)
	if err := c.mgr.Writer.PrepareWriting(path, "", size, meta); err != nil {
		return c.failErr(err)
	}

	written, err := c.stream(ctx, f, progress.New(size))
	if err != nil {
		return err
	}

	if err := c.mgr.Writer.DoneWriting(written); err != nil {
		return c.failErr(err)
	}

	c.recordAdded(written)
	return nil
}

// addFileCompressed implements §4.6 step 2: materialize a compressed
// scratch file, rotate on the compressed size, then write the entry with
// the original file's metadata but the compressed payload's size and
// suffix.
func (c *Controller) addFileCompressed(ctx context.Context, path string, info os.FileInfo) error {
	scratch := filepath.Join(c.cfg.ScratchDir, fmt.Sprintf(".slicearchive-%s%s", uuid.NewString(), c.codec.Suffix()))
	defer os.Remove(scratch)

	res, err := compress.File(ctx, path, scratch, c.codec, progress.New(info.Size()), func(percent int) {
		c.bus.Publish(events.FileProgress, percent)
	})
	if err != nil {
		c.warnUnreadable(path, err)
		return nil
	}
	if res.Cancelled {
		c.cancelled.Store(true)
		return errCancelled
	}

	st, err := os.Stat(scratch)
	if err != nil {
		c.warnUnreadable(path, err)
		return nil
	}
	csize := st.Size()
	if csize > c.MaxEntrySize {
		c.warnOversize(path)
		return nil
	}

	if err := c.rotateIfNeeded(ctx, csize); err != nil {
		return err
	}

	meta := metaFromInfo(info)
	if err := c.mgr.Writer.PrepareWriting(path, c.codec.Suffix(), csize, meta); err != nil {
		return c.failErr(err)
	}

	sf, err := os.Open(scratch)
	if err != nil {
		return c.failErr(err)
	}
	defer sf.Close()

	written, err := c.stream(ctx, sf, nil)
	if err != nil {
		return err
	}

	if err := c.mgr.Writer.DoneWriting(written); err != nil {
		return c.failErr(err)
	}

	c.recordAdded(written)
	return nil
}

// rotateIfNeeded implements the capacity check shared by both add paths:
// "if slice_bytes + payload_size > slice_capacity: rotate_slice()".
func (c *Controller) rotateIfNeeded(ctx context.Context, payloadSize int64) error {
	sliceBytes, err := c.mgr.Writer.Size()
	if err != nil {
		return c.failErr(err)
	}
	if sliceBytes+payloadSize <= c.mgr.SliceCapacity {
		return nil
	}
	return c.rotate(ctx)
}

// rotate implements rotate_slice() of §4.6: emit SliceProgress(100), close
// and reopen the slice via the Lifecycle Manager, cancelling the run if an
// interactive media-change confirmation is refused.
func (c *Controller) rotate(ctx context.Context) error {
	c.bus.Publish(events.SliceProgress, 100)
	cancelled, err := c.mgr.Rotate(ctx)
	if err != nil {
		return c.failErr(err)
	}
	if cancelled {
		c.cancelled.Store(true)
		return errCancelled
	}
	return nil
}

// stream copies r into the currently open entry in 8 KiB blocks, yielding
// to ctx.Done() every 50 blocks per §5, and emitting FileProgress per the
// busy-cursor throttling rule tracker implements when tracker is non-nil.
func (c *Controller) stream(ctx context.Context, r io.Reader, tracker *progress.Tracker) (int64, error) {
	buf := make([]byte, blockSize)
	var written int64
	blocks := 0

	for {
		if c.isCancelled() {
			return written, errCancelled
		}

		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := c.mgr.Writer.WriteData(buf[:n]); werr != nil {
				return written, c.failErr(werr)
			}
			written += int64(n)
			c.totalBytes += int64(n)
			c.bus.Publish(events.TotalBytesChanged, c.totalBytes)
			if tracker != nil {
				tracker.Add(int64(n))
				if tracker.ShouldEmit() {
					c.bus.Publish(events.FileProgress, tracker.Percent())
				}
			}
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return written, c.failErr(rerr)
		}

		blocks = (blocks + 1) % yieldEvery
		if blocks == 0 {
			select {
			case <-ctx.Done():
				c.cancelled.Store(true)
				return written, errCancelled
			default:
			}
		}
	}
	return written, nil
}

// recordAdded updates the run totals and fires TotalFilesChanged once an
// entry has been fully and successfully written.
func (c *Controller) recordAdded(size int64) {
	c.totalFiles++
	c.bus.Publish(events.TotalFilesChanged, c.totalFiles)
}

// failErr implements the WriteError/metadata-stat-failure disposition of
// §7: any error that could leave the open slice inconsistent is fatal to
// the run, not just the entry.
func (c *Controller) failErr(err error) error {
	c.cancelled.Store(true)
	c.bus.Publish(events.Warning, err.Error())
	return errors.WrapIf(err, "archiver: fatal write error, cancelling run")
}

// warnUnreadable implements the ReadError disposition of §7: log a warning,
// mark skipped_files sticky, and continue.
func (c *Controller) warnUnreadable(path string, err error) {
	c.skippedFiles = true
	c.bus.Publish(events.Warning, fmt.Sprintf("skipping unreadable path %q: %s", path, err))
}

// warnOversize implements the OversizeError disposition of §7.
func (c *Controller) warnOversize(path string) {
	c.skippedFiles = true
	c.bus.Publish(events.Warning, fmt.Sprintf("skipping %q: exceeds the archive format's maximum entry size", path))
}
