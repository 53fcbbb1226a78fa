//go:build !linux

package fscache

import (
	"os"
	"time"
)

// statTimes liest mtime; ohne stat-ctime wird mtime auch als ctime gemeldet
func statTimes(path string, follow bool) (mtime, ctime time.Time, err error) {
	stat := os.Lstat
	if follow {
		stat = os.Stat
	}

	fi, err := stat(path)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return fi.ModTime(), fi.ModTime(), nil
}
