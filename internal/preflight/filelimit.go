package preflight

import (
	"fmt"
	"syscall"
)

const (
	// fdBaseline covers the message store, logs, the pool walk and the
	// server transport.
	fdBaseline = 128
	// fdPerIndex covers the lock file and artifact handles of one cached
	// conversation index.
	fdPerIndex = 3
)

// RequiredFileDescriptors returns the open-file limit needed to keep
// maxOpenIndices conversation indexes cached.
func RequiredFileDescriptors(maxOpenIndices int) uint64 {
	if maxOpenIndices < 1 {
		maxOpenIndices = 1
	}
	return fdBaseline + fdPerIndex*uint64(maxOpenIndices)
}

// CheckFileDescriptors compares the soft open-file limit against what the
// configured index cache needs.
func (c *Checker) CheckFileDescriptors(maxOpenIndices int) CheckResult {
	result := CheckResult{Name: "file_descriptors", Required: true}
	need := RequiredFileDescriptors(maxOpenIndices)

	var lim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read open-file limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("limit %d, need %d", lim.Cur, need)
	if uint64(lim.Cur) < need {
		result.Status = StatusFail
		result.Details = fmt.Sprintf("raise it with 'ulimit -n %d' or lower store.max_open_indices", need*2)
		return result
	}
	result.Status = StatusPass
	return result
}
