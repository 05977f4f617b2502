package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	cerrors "github.com/Aman-CERP/convorag/internal/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"plain error", errors.New("boom"), exitFailure},
		{"invalid id", cerrors.New(cerrors.ErrCodeInvalidID, "bad id", nil), exitUsage},
		{"wrapped config", fmt.Errorf("load: %w", cerrors.ConfigError("bad yaml", nil)), exitConfig},
		{"storage", cerrors.StorageError("disk full", nil), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
