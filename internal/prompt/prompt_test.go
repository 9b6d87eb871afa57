package prompt_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sliceback/sliceback/internal/lifecycle"
	"github.com/sliceback/sliceback/internal/prompt"
)

func TestNoninteractive_Defaults(t *testing.T) {
	var p prompt.Prompter = prompt.Noninteractive{}

	require.False(t, p.RetryOpen("/a.tar"))
	require.False(t, p.MediaChange(2))
	require.True(t, p.RunFinished(false))
	require.True(t, p.RunFinished(true))

	action, target := p.UploadFailed()
	require.Equal(t, lifecycle.ActionCancel, action)
	require.Empty(t, target)
}

func TestUploadAction_String(t *testing.T) {
	require.Equal(t, "retry", lifecycle.ActionRetry.String())
	require.Equal(t, "change_target", lifecycle.ActionChangeTarget.String())
	require.Equal(t, "cancel", lifecycle.ActionCancel.String())
}
