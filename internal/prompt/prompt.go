// Package prompt implements the Prompter (§6): the interactive decision
// source for retry / media-change / upload-failure choices, plus a
// non-interactive adapter that always resolves to the documented defaults.
// The interactive adapter is grounded in the teacher's survey usage in
// cmd/configure.go.
package prompt

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"

	"github.com/sliceback/sliceback/internal/lifecycle"
)

// Prompter answers the three yes/no/cancel decisions an interactive run may
// need, per spec.md §6, plus the end-of-run quit question (RunFinished).
type Prompter interface {
	// RetryOpen asks whether to retry opening archivePath after a failure.
	RetryOpen(archivePath string) bool
	// MediaChange asks whether the next slice's medium has been inserted.
	MediaChange(sliceNum int) bool
	// UploadFailed asks how to proceed after a slice failed to upload.
	UploadFailed() (action lifecycle.UploadAction, newTarget string)
	// RunFinished is asked once after a successful interactive run; a true
	// result means the user wants to quit immediately rather than start
	// another run, per the kbackup done-prompt behavior (SPEC_FULL.md §12).
	RunFinished(skipped bool) bool
}

// Noninteractive resolves every decision as the documented default for
// unattended mode: no retry, no wait, cancel.
type Noninteractive struct{}

func (Noninteractive) RetryOpen(string) bool { return false }
func (Noninteractive) MediaChange(int) bool  { return false }
func (Noninteractive) RunFinished(bool) bool { return true }
func (Noninteractive) UploadFailed() (lifecycle.UploadAction, string) {
	return lifecycle.ActionCancel, ""
}

// Survey is an interactive Prompter backed by AlecAivazis/survey, matching
// the question/confirm style the teacher uses in cmd/configure.go.
type Survey struct{}

func (Survey) RetryOpen(archivePath string) bool {
	var retry bool
	_ = survey.AskOne(&survey.Confirm{
		Message: fmt.Sprintf("Failed to open archive '%s'. Retry?", archivePath),
		Default: true,
	}, &retry)
	return retry
}

func (Survey) MediaChange(sliceNum int) bool {
	var ready bool
	_ = survey.AskOne(&survey.Confirm{
		Message: fmt.Sprintf("Insert the medium for slice %d and confirm when ready.", sliceNum),
		Default: true,
	}, &ready)
	return ready
}

func (Survey) UploadFailed() (lifecycle.UploadAction, string) {
	choice := ""
	_ = survey.AskOne(&survey.Select{
		Message: "Uploading the finished slice failed. What now?",
		Options: []string{"retry", "change target", "cancel"},
		Default: "retry",
	}, &choice)

	switch choice {
	case "retry":
		return lifecycle.ActionRetry, ""
	case "change target":
		target := ""
		_ = survey.AskOne(&survey.Input{Message: "New target directory or URL:"}, &target)
		return lifecycle.ActionChangeTarget, target
	default:
		return lifecycle.ActionCancel, ""
	}
}

func (Survey) RunFinished(skipped bool) bool {
	msg := "Backup completed successfully. Quit?"
	if skipped {
		msg = "Backup completed, but some files were skipped. Quit?"
	}
	var quit bool
	_ = survey.AskOne(&survey.Confirm{Message: msg, Default: false}, &quit)
	return quit
}
