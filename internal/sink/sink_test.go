package sink_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sliceback/sliceback/internal/sink"
)

func TestLocal_Upload(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	src := filepath.Join(srcDir, "slice_1.tar")
	require.NoError(t, os.WriteFile(src, []byte("tar-payload"), 0o644))

	l := sink.Local{}
	require.NoError(t, l.Upload(context.Background(), src, dstDir))

	data, err := os.ReadFile(filepath.Join(dstDir, "slice_1.tar"))
	require.NoError(t, err)
	require.Equal(t, "tar-payload", string(data))
}

func TestLocal_Upload_SamePathIsNoop(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "slice_1.tar")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	l := sink.Local{}
	require.NoError(t, l.Upload(context.Background(), src, dir))
}

type fakeProvider struct {
	urls []string
}

func (f fakeProvider) PartUploadURLs(ctx context.Context, target string, size int64) ([]string, error) {
	return f.urls, nil
}

func TestHTTP_UploadSinglePart(t *testing.T) {
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		received = b
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	src := filepath.Join(dir, "slice_1.tar")
	content := []byte("some slice content")
	require.NoError(t, os.WriteFile(src, content, 0o644))

	h := sink.NewHTTP(fakeProvider{urls: []string{srv.URL}}, nil)
	require.NoError(t, h.Upload(context.Background(), src, "remote://bucket"))
	require.Equal(t, content, received)
}

func TestHTTP_UploadFailsOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	src := filepath.Join(dir, "slice_1.tar")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	h := sink.NewHTTP(fakeProvider{urls: []string{srv.URL}}, nil)
	err := h.Upload(context.Background(), src, "remote://bucket")
	require.Error(t, err)
}

func TestHTTP_NoPartsErrors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "slice_1.tar")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	h := sink.NewHTTP(fakeProvider{}, nil)
	err := h.Upload(context.Background(), src, "remote://bucket")
	require.Error(t, err)
}
