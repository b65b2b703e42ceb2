//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package dirfs

import "golang.org/x/sys/unix"

// freeSpace reports the bytes available on the filesystem holding path,
// or 0 (unlimited) when the probe fails.
func freeSpace(path string) int64 {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0
	}
	return int64(st.Bavail) * int64(st.Bsize)
}
