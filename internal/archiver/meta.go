package archiver

import (
	"os"
	"os/user"
	"strconv"

	"github.com/sliceback/sliceback/internal/slicewriter"
)

// metaFromInfo builds the POSIX metadata a tar entry carries from a stat
// result, per spec.md §3 ("File entries inside the tar carry mode, atime,
// mtime, ctime, owner and group of the original file"). uid/gid/atime/ctime
// extraction is platform-specific (sysTimes), matching the teacher's own
// stat_linux.go/stat_darwin.go split for reaching into syscall.Stat_t.
func metaFromInfo(info os.FileInfo) slicewriter.Meta {
	uid, gid, atime, ctime := sysTimes(info)
	return slicewriter.Meta{
		Owner:      lookupUser(uid),
		Group:      lookupGroup(gid),
		UID:        uid,
		GID:        gid,
		Mode:       info.Mode(),
		ModTime:    info.ModTime(),
		AccessTime: atime,
		ChangeTime: ctime,
	}
}

// lookupUser and lookupGroup resolve numeric ids to names for the tar
// header's Uname/Gname fields; an id with no resolvable name is archived
// with an empty name rather than failing the entry.
func lookupUser(uid int) string {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return ""
	}
	return u.Username
}

func lookupGroup(gid int) string {
	g, err := user.LookupGroupId(strconv.Itoa(gid))
	if err != nil {
		return ""
	}
	return g.Name
}
