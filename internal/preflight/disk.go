package preflight

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"syscall"
)

const (
	// MinDiskSpaceBytes is the free space below which index writes are
	// expected to fail.
	MinDiskSpaceBytes = 100 * 1024 * 1024
	// LowDiskSpaceBytes is the free space below which the check warns.
	LowDiskSpaceBytes = 1024 * 1024 * 1024
)

// CheckDiskSpace reports free space on the filesystem holding the data dir
// and how much of it the stored conversations already use.
func (c *Checker) CheckDiskSpace(dataDir string) CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	free, err := freeBytes(dataDir)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot stat filesystem: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%s free, conversations use %s", formatBytes(free), formatBytes(dirSize(dataDir)))
	switch {
	case free < MinDiskSpaceBytes:
		result.Status = StatusFail
		result.Details = fmt.Sprintf("need at least %s; remove old conversations with 'convorag cleanup'", formatBytes(MinDiskSpaceBytes))
	case free < LowDiskSpaceBytes:
		result.Status = StatusWarn
		result.Details = "space is low; remove old conversations with 'convorag cleanup'"
	default:
		result.Status = StatusPass
	}
	return result
}

func freeBytes(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// dirSize sums regular file sizes under root. Unreadable entries count as 0.
func dirSize(root string) uint64 {
	var total uint64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}

var byteUnits = []string{"KB", "MB", "GB", "TB"}

func formatBytes(n uint64) string {
	if n < 1024 {
		return fmt.Sprintf("%d bytes", n)
	}
	v := float64(n) / 1024
	unit := 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", v, byteUnits[unit])
}
