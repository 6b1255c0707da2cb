package state

import (
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// Extensions that gate metric categories
const (
	ExtensionPgStatStatements = "pg_stat_statements"
	ExtensionPgWaitSampling   = "pg_wait_sampling"
	ExtensionPgStatMonitor    = "pg_stat_monitor"
)

// ExtensionInfo - An installed extension, as seen in pg_extension
type ExtensionInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Enabled bool   `json:"enabled"`
}

// AtLeast - Whether the installed extension version is at least the given
// version (e.g. "1.8"). Unparseable versions never satisfy the check.
func (e ExtensionInfo) AtLeast(version string) bool {
	installed := "v" + strings.TrimPrefix(e.Version, "v")
	required := "v" + strings.TrimPrefix(version, "v")
	if !semver.IsValid(installed) || !semver.IsValid(required) {
		return false
	}
	return semver.Compare(installed, required) >= 0
}

// Capabilities - What the monitored server supports in the current cycle.
//
// Computed once per cycle and never modified afterwards. Version is the major
// version, and is the only field gating logic may assume to be set.
type Capabilities struct {
	Version        int                      `json:"version"`
	VersionNumeric int                      `json:"version_numeric"`
	IsManaged      bool                     `json:"is_managed"`
	HasSuperuser   bool                     `json:"has_superuser"`
	Extensions     map[string]ExtensionInfo `json:"extensions"`
}

// NewCapabilities - Builds a capabilities snapshot that doesn't share the given extension map
func NewCapabilities(versionNumeric int, isManaged bool, hasSuperuser bool, extensions map[string]ExtensionInfo) Capabilities {
	extensionsCopy := make(map[string]ExtensionInfo, len(extensions))
	for name, info := range extensions {
		extensionsCopy[name] = info
	}
	return Capabilities{
		Version:        MajorVersion(versionNumeric),
		VersionNumeric: versionNumeric,
		IsManaged:      isManaged,
		HasSuperuser:   hasSuperuser,
		Extensions:     extensionsCopy,
	}
}

// HasExtension - Disabled extensions count as absent
func (c Capabilities) HasExtension(name string) bool {
	info, ok := c.Extensions[name]
	return ok && info.Enabled
}

// ExtensionNames - Names of enabled extensions, sorted
func (c Capabilities) ExtensionNames() []string {
	names := []string{}
	for name, info := range c.Extensions {
		if info.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
