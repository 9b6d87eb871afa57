//go:build darwin

package archiver

import (
	"os"
	"syscall"
	"time"
)

// sysTimes mirrors meta_linux.go's field names against Darwin's differently
// named Stat_t fields, matching the teacher's stat_darwin.go split.
func sysTimes(info os.FileInfo) (uid, gid int, atime, ctime time.Time) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, info.ModTime(), info.ModTime()
	}
	return int(st.Uid), int(st.Gid), time.Unix(st.Atimespec.Sec, st.Atimespec.Nsec), time.Unix(st.Ctimespec.Sec, st.Ctimespec.Nsec)
}
