//go:build !windows

package model

import "golang.org/x/sys/unix"

// freeDiskSpace returns the bytes available to the current user on the
// filesystem containing dir.
func freeDiskSpace(dir string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil //nolint:unconvert // Bavail/Bsize widths differ across platforms
}
