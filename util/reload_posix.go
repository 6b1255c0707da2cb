//go:build linux || freebsd || darwin

package util

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/keybase/go-ps"
)

const CollectorExecutable = "pgtelemetry-collector"

// Reload - Sends SIGHUP to the running collector process, which re-reads its config
func Reload() (reloadedPid int, err error) {
	processes, err := ps.Processes()
	if err != nil {
		return -1, fmt.Errorf("could not read process list: %s", err)
	}
	for _, p := range processes {
		if p.Executable() == CollectorExecutable && p.Pid() != os.Getpid() {
			err = syscall.Kill(p.Pid(), syscall.SIGHUP)
			if err != nil {
				return -1, fmt.Errorf("could not send SIGHUP to process: %s", err)
			}
			return p.Pid(), nil
		}
	}
	return -1, errors.New("could not find collector in process list; try restarting the collector process")
}
