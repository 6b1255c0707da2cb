package util

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const TempFilePrefix = "pgtelemetry_"

// PruneTempFiles - Delete partially written output files left behind in dir by an unclean shutdown
func PruneTempFiles(logger *Logger, dir string) {
	usr, err := user.Current()
	if err != nil {
		logger.PrintWarning("Could not check current user to prune temp files: %s", err)
		return
	}
	uid, err := strconv.ParseUint(usr.Uid, 10, 32)
	if err != nil {
		logger.PrintWarning("Could not parse current user uid to prune temp files: %s", err)
		return
	}
	uid32 := uint32(uid)
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.PrintWarning("Could not open directory %s to prune temp files: %s", dir, err)
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, TempFilePrefix) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			logger.PrintWarning("Could not check info for file %s in %s: %s", name, dir, err)
			continue
		}
		if stat, ok := fi.Sys().(*syscall.Stat_t); ok && stat.Uid == uid32 {
			err = os.Remove(filepath.Join(dir, name))
			if err != nil {
				logger.PrintWarning("Could not remove stray temp file %s in %s: %s", name, dir, err)
				continue
			}
			logger.PrintVerbose("Removed stray temp file %s in %s", name, dir)
		}
	}
}
