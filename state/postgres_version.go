package state

// Known major versions - use these for checks in version-dependent code
const (
	PostgresVersion12 = 12
	PostgresVersion13 = 13
	PostgresVersion14 = 14
	PostgresVersion16 = 16

	// MinSupportedPostgresVersion - Statement statistics queries exist for 12 and newer only
	MinSupportedPostgresVersion = PostgresVersion12
)

// MajorVersion - Major version for a server_version_num value, e.g. 150004 => 15
func MajorVersion(numeric int) int {
	return numeric / 10000
}
