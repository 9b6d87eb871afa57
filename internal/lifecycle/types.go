// Package lifecycle implements the Slice Lifecycle Manager (§4.4): it owns
// the open/add*/close/[upload]/script-hooks sequence for a single slice and
// the upload-retry policy, grounded in the teacher's backup.Backup.Generate
// plus its S3/local adapter split in server/backup/backup_s3.go and
// backup_local.go.
package lifecycle

// Phase identifies a point in a slice's lifecycle at which the configured
// script hook is notified, per spec.md §4.4/§6.
type Phase string

const (
	PhaseSliceInit     Phase = "slice_init"
	PhaseSliceClosed   Phase = "slice_closed"
	PhaseSliceFinished Phase = "slice_finished"
)

// UploadAction is the Prompter's answer when an upload has failed in an
// interactive run, per spec.md §4.4.
type UploadAction int

const (
	ActionRetry UploadAction = iota
	ActionChangeTarget
	ActionCancel
)

func (a UploadAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionChangeTarget:
		return "change_target"
	default:
		return "cancel"
	}
}
