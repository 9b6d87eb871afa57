package compress_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	bzip2r "github.com/dsnet/compress/bzip2"
	"github.com/stretchr/testify/require"

	"github.com/sliceback/sliceback/internal/compress"
	"github.com/sliceback/sliceback/internal/progress"
)

func TestSelect(t *testing.T) {
	require.Equal(t, compress.None, compress.Select(false))
	require.Equal(t, compress.Bzip2, compress.Select(true))
}

func TestSelect_DegradesWhenNoCodecAvailable(t *testing.T) {
	orig := compress.Available
	defer func() { compress.Available = orig }()

	compress.Available = func(c compress.Codec) bool { return c == compress.None }
	require.Equal(t, compress.None, compress.Select(true))
}

func TestSelect_FallsBackToGzip(t *testing.T) {
	orig := compress.Available
	defer func() { compress.Available = orig }()

	compress.Available = func(c compress.Codec) bool { return c != compress.Bzip2 }
	require.Equal(t, compress.Gzip, compress.Select(true))
}

func TestFile_Bzip2RoundTrips(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "src.txt.bz2")
	content := bytes.Repeat([]byte("hello world\n"), 1000)
	require.NoError(t, os.WriteFile(src, content, 0o644))

	tracker := progress.New(int64(len(content)))
	res, err := compress.File(context.Background(), src, dst, compress.Bzip2, tracker, nil)
	require.NoError(t, err)
	require.False(t, res.Cancelled)
	require.Equal(t, int64(len(content)), tracker.Written())

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	r, err := bzip2r.NewReader(f, nil)
	require.NoError(t, err)
	defer r.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(r)
	require.NoError(t, err)
	require.Equal(t, content, out.Bytes())
}

func TestFile_GzipRoundTrips(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "src.txt.gz")
	content := []byte("small file contents")
	require.NoError(t, os.WriteFile(src, content, 0o644))

	_, err := compress.File(context.Background(), src, dst, compress.Gzip, nil, nil)
	require.NoError(t, err)

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	r, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer r.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(r)
	require.NoError(t, err)
	require.Equal(t, content, out.Bytes())
}

func TestFile_CancelledMidStreamDeletesNothingItself(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "src.bin.bz2")
	require.NoError(t, os.WriteFile(src, bytes.Repeat([]byte{0xAA}, 1024*1024), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := compress.File(ctx, src, dst, compress.Bzip2, nil, nil)
	require.NoError(t, err)
	require.True(t, res.Cancelled)
	// The caller, not File, is responsible for deleting dst on cancellation
	// per the §4.2 contract; File only guarantees both ends of the pipe are
	// closed so the partial file can be removed safely.
	_, statErr := os.Stat(dst)
	require.NoError(t, statErr)
}

func TestFile_MissingSourceErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := compress.File(context.Background(), filepath.Join(dir, "nope"), filepath.Join(dir, "out.bz2"), compress.Bzip2, nil, nil)
	require.Error(t, err)
}
