//go:build linux

package fscache

import (
	"io/fs"
	"time"

	"golang.org/x/sys/unix"
)

// statTimes liest mtime und ctime; follow entscheidet zwischen stat und lstat
func statTimes(path string, follow bool) (mtime, ctime time.Time, err error) {
	var st unix.Stat_t
	if follow {
		err = unix.Stat(path, &st)
	} else {
		err = unix.Lstat(path, &st)
	}
	if err != nil {
		return time.Time{}, time.Time{}, &fs.PathError{Op: "stat", Path: path, Err: err}
	}

	return time.Unix(st.Mtim.Unix()), time.Unix(st.Ctim.Unix()), nil
}
