package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidStatus(t *testing.T) {
	for _, status := range []string{"uploading", "processing", "completed", "failed"} {
		assert.True(t, IsValidStatus(status), "expected %q to be valid", status)
	}
	for _, status := range []string{"", "done", "UPLOADING", "pending"} {
		assert.False(t, IsValidStatus(status), "expected %q to be invalid", status)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"uploading to processing", StatusUploading, StatusProcessing, true},
		{"uploading to failed", StatusUploading, StatusFailed, true},
		{"uploading to completed skips processing", StatusUploading, StatusCompleted, false},
		{"processing to completed", StatusProcessing, StatusCompleted, true},
		{"processing to failed", StatusProcessing, StatusFailed, true},
		{"processing back to uploading", StatusProcessing, StatusUploading, false},
		{"failed retries via processing", StatusFailed, StatusProcessing, true},
		{"failed straight to completed", StatusFailed, StatusCompleted, false},
		{"completed is terminal", StatusCompleted, StatusProcessing, false},
		{"completed cannot fail", StatusCompleted, StatusFailed, false},
		{"same status is not a transition", StatusProcessing, StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}
