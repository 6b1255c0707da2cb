//go:build !darwin && !linux && !freebsd

package util

import "errors"

const CollectorExecutable = "pgtelemetry-collector"

func Reload() (reloadedPid int, err error) {
	return -1, errors.New("the reload command is only supported on POSIX systems")
}
