package sink

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"emperror.dev/errors"
)

// Local copies a finished slice into a local directory target, matching the
// teacher's LocalBackup.Path()-relative-copy semantics. The lifecycle
// manager does not call its Sink for a local target (the slice is written
// there directly), so Local only runs when a caller invokes Upload itself.
type Local struct{}

func (Local) Upload(ctx context.Context, localFile, target string) error {
	dst := filepath.Join(target, filepath.Base(localFile))
	if dst == localFile {
		return nil
	}

	in, err := os.Open(localFile)
	if err != nil {
		return errors.WrapIff(err, "sink: failed to open '%s' for copy", localFile)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.WrapIff(err, "sink: failed to create '%s'", dst)
	}
	defer out.Close()

	if _, err := io.Copy(out, copyCtxReader{ctx, in}); err != nil {
		return errors.WrapIff(err, "sink: failed to copy '%s' to '%s'", localFile, dst)
	}
	return nil
}

// copyCtxReader aborts an io.Copy promptly when ctx is cancelled, matching
// the cancellation cadence of §5 for the local-sink path.
type copyCtxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c copyCtxReader) Read(p []byte) (int, error) {
	select {
	case <-c.ctx.Done():
		return 0, c.ctx.Err()
	default:
	}
	return c.r.Read(p)
}
