package fs

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
)

// FreeSpace returns the number of bytes available to the caller on the
// filesystem that holds dir.
func FreeSpace(dir string) (uint64, error) {
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to get disk usage of %s: %w", dir, err)
	}
	return usage.Free, nil
}
