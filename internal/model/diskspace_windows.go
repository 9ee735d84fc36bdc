//go:build windows

package model

import "golang.org/x/sys/windows"

// freeDiskSpace returns the bytes available to the current user on the
// volume containing dir.
func freeDiskSpace(dir string) (int64, error) {
	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	dirPtr, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, err
	}
	if err := windows.GetDiskFreeSpaceEx(dirPtr, &freeBytesAvailable, &totalBytes, &totalFreeBytes); err != nil {
		return 0, err
	}
	return int64(freeBytesAvailable), nil
}
