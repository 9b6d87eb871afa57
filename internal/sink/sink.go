// Package sink implements the Sink adapters (§6) that deliver a finished
// slice to a non-local destination, grounded in the teacher's
// server/backup/backup_local.go (filesystem copy) and backup_s3.go
// (presigned multipart HTTP upload) adapters.
package sink

import (
	"context"
)

// Sink uploads a finished, local slice file to its final destination. The
// Sink owns authentication and overwrite semantics, per spec.md §6.
type Sink interface {
	Upload(ctx context.Context, localFile, target string) error
}
