// Command convorag serves per-conversation retrieval and memory.
package main

import (
	"os"

	"github.com/Aman-CERP/convorag/cmd/convorag/cmd"
	cerrors "github.com/Aman-CERP/convorag/internal/errors"
)

// Exit codes. Anything unclassified exits 1.
const (
	exitFailure = 1
	exitUsage   = 2
	exitConfig  = 3
)

func main() {
	os.Exit(exitCode(cmd.Execute()))
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	switch cerrors.GetCategory(err) {
	case cerrors.CategoryValidation:
		return exitUsage
	case cerrors.CategoryConfig:
		return exitConfig
	default:
		return exitFailure
	}
}
