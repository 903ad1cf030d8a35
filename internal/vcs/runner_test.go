package vcs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Run_Success(t *testing.T) {
	t.Parallel()

	r := NewRunner(t.TempDir(), RunnerOptions{Binary: "echo"})

	out, err := r.Run(context.Background(), "hello", "world")

	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestRunner_Run_Failure(t *testing.T) {
	t.Parallel()

	r := NewRunner(t.TempDir(), RunnerOptions{Binary: "false"})

	_, err := r.Run(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestRunner_Run_Timeout(t *testing.T) {
	t.Parallel()

	r := NewRunner(t.TempDir(), RunnerOptions{Binary: "sleep", Timeout: 50 * time.Millisecond})

	_, err := r.Run(context.Background(), "5")

	require.ErrorIs(t, err, ErrTimeout)
}

func TestRunner_Defaults(t *testing.T) {
	t.Parallel()

	r := NewRunner(t.TempDir(), RunnerOptions{})

	assert.Equal(t, defaultBinary, r.binary)
	assert.Equal(t, DefaultTimeout, r.timeout)
}

func TestIsConflictOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{name: "upper marker", output: "CONFLICT (content): Merge conflict in a.txt", want: true},
		{name: "could not apply", output: "error: could not apply deadbeef... change", want: true},
		{name: "needs merge", output: "a.txt: needs merge", want: true},
		{name: "clean", output: "1 file changed, 2 insertions(+)", want: false},
		{name: "empty", output: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, isConflictOutput(tt.output))
		})
	}
}
