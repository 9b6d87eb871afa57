package sink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"emperror.dev/errors"
)

// PartSize is the chunk size used when splitting a slice across multiple PUT
// requests, matching the part-size convention of the teacher's S3 adapter.
const PartSize = 64 * 1024 * 1024

// URLProvider resolves the set of presigned PUT URLs a slice of the given
// size should be uploaded through. It stands in for the Panel's
// GetBackupRemoteUploadURLs call in the teacher's S3Backup adapter; an
// embedding application supplies its own implementation for its remote API.
type URLProvider interface {
	PartUploadURLs(ctx context.Context, target string, size int64) ([]string, error)
}

// HTTP uploads a finished slice as one or more PUT requests against
// presigned URLs obtained from a URLProvider, the Go-native equivalent of
// the teacher's S3Backup.generateRemoteRequest/handlePart pair.
type HTTP struct {
	Client   *http.Client
	Provider URLProvider
}

// NewHTTP returns an HTTP sink using http.DefaultClient if client is nil.
func NewHTTP(provider URLProvider, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{Client: client, Provider: provider}
}

func (h *HTTP) Upload(ctx context.Context, localFile, target string) error {
	st, err := os.Stat(localFile)
	if err != nil {
		return errors.WrapIff(err, "sink: failed to stat '%s'", localFile)
	}
	size := st.Size()

	urls, err := h.Provider.PartUploadURLs(ctx, target, size)
	if err != nil {
		return errors.WrapIf(err, "sink: failed to obtain upload URLs")
	}
	if len(urls) == 0 {
		return errors.New("sink: upload URL provider returned no parts")
	}

	f, err := os.Open(localFile)
	if err != nil {
		return errors.WrapIff(err, "sink: failed to open '%s' for upload", localFile)
	}
	defer f.Close()

	for i, part := range urls {
		var partSize int64
		if i+1 < len(urls) {
			partSize = PartSize
		} else {
			partSize = size - int64(i)*PartSize
		}

		if err := h.putPart(ctx, part, io.LimitReader(f, partSize), partSize); err != nil {
			return errors.WrapIff(err, "sink: failed to upload part %d of '%s'", i+1, localFile)
		}
	}
	return nil
}

func (h *HTTP) putPart(ctx context.Context, url string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("Content-Type", "application/octet-stream")

	res, err := h.Client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", res.StatusCode, res.Status)
	}
	return nil
}
