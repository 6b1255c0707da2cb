package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/pgtelemetry/collector/state"
	"github.com/pgtelemetry/collector/util"
)

// QueryMarkerSQL - Prefixed to every query we run, so they can be told apart from application queries
const QueryMarkerSQL = "/* pgtelemetry */ "

// CapabilityDetector determines what the monitored server supports
type CapabilityDetector struct {
	db     *sql.DB
	logger *util.Logger
}

func NewCapabilityDetector(db *sql.DB, logger *util.Logger) *CapabilityDetector {
	return &CapabilityDetector{db: db, logger: logger}
}

// Detect reads the server version, installed extensions, managed service
// indicator and superuser status.
//
// Only a failure to read the version is fatal (*state.CapabilityError). The
// other checks degrade to "absent" / "not managed" / "not superuser", which
// only ever narrows what gets collected.
func (d *CapabilityDetector) Detect(ctx context.Context) (state.Capabilities, error) {
	versionNum, err := GetServerVersionNum(ctx, d.db)
	if err != nil {
		return state.Capabilities{}, &state.CapabilityError{Err: errors.Wrap(classifyError("version check", err), "failed to read server version")}
	}

	extensions, err := GetExtensions(ctx, d.db)
	if err != nil {
		d.logger.PrintWarning("Could not list extensions, treating all as absent: %s", err)
		extensions = nil
	}

	isManaged, err := isManagedService(ctx, d.db)
	if err != nil {
		d.logger.PrintWarning("Could not check for managed service settings, assuming self-managed: %s", err)
		isManaged = false
	}

	hasSuperuser, err := connectedAsSuperUser(ctx, d.db)
	if err != nil {
		d.logger.PrintVerbose("Could not check superuser status: %s", err)
		hasSuperuser = false
	}

	caps := state.NewCapabilities(versionNum, isManaged, hasSuperuser, extensions)

	d.logger.PrintVerbose("Detected PostgreSQL %d (managed: %t, superuser: %t, extensions: %s)",
		caps.Version, caps.IsManaged, caps.HasSuperuser, strings.Join(caps.ExtensionNames(), ", "))

	return caps, nil
}
