//go:build linux

package archiver

import (
	"os"
	"syscall"
	"time"
)

// sysTimes reaches into the platform's Stat_t the same way the teacher's
// server/filesystem_linux.go CTime helper does, recovering uid, gid, atime
// and ctime that os.FileInfo doesn't expose directly.
func sysTimes(info os.FileInfo) (uid, gid int, atime, ctime time.Time) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, info.ModTime(), info.ModTime()
	}
	return int(st.Uid), int(st.Gid), time.Unix(st.Atim.Sec, st.Atim.Nsec), time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
}
