//go:build !linux && !darwin

package archiver

import (
	"os"
	"time"
)

// sysTimes falls back to the portable os.FileInfo fields on platforms
// whose Stat_t layout isn't special-cased above; owner/group become
// unresolvable (uid/gid 0) and atime/ctime degrade to mtime.
func sysTimes(info os.FileInfo) (uid, gid int, atime, ctime time.Time) {
	return 0, 0, info.ModTime(), info.ModTime()
}
