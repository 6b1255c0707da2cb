package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kylelemons/godebug/pretty"

	"github.com/pgtelemetry/collector/state"
	"github.com/pgtelemetry/collector/util"
)

func TestCapabilityDetect(t *testing.T) {
	db, mock := mockDB(t)

	mock.ExpectQuery(`server_version_num`).
		WillReturnRows(sqlmock.NewRows([]string{"current_setting"}).AddRow(150004))
	mock.ExpectQuery(`pg_extension`).
		WillReturnRows(sqlmock.NewRows([]string{"extname", "extversion", "enabled"}).
			AddRow("pg_stat_statements", "1.10", true).
			AddRow("pg_wait_sampling", "1.1", false).
			AddRow("plpgsql", "1.0", true))
	mock.ExpectQuery(`rds\.superuser_reserved_connections`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`is_superuser`).
		WillReturnRows(sqlmock.NewRows([]string{"is_superuser"}).AddRow(false))

	caps, err := NewCapabilityDetector(db, util.NewNopLogger()).Detect(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	if caps.Version != 15 || caps.VersionNumeric != 150004 {
		t.Errorf("Version: expected 15 (150004); actual %d (%d)", caps.Version, caps.VersionNumeric)
	}
	if !caps.IsManaged || caps.HasSuperuser {
		t.Errorf("Expected a managed server without superuser; actual managed=%t superuser=%t", caps.IsManaged, caps.HasSuperuser)
	}
	if !caps.HasExtension(state.ExtensionPgStatStatements) {
		t.Errorf("Expected pg_stat_statements to be available")
	}
	if caps.HasExtension(state.ExtensionPgWaitSampling) {
		t.Errorf("Expected disabled pg_wait_sampling not to count as available")
	}
	if diff := pretty.Compare([]string{"pg_stat_statements", "plpgsql"}, caps.ExtensionNames()); diff != "" {
		t.Errorf("ExtensionNames: diff (-want +got):\n%s", diff)
	}

	expectationsMet(t, mock)
}

func TestCapabilityDetectDegrades(t *testing.T) {
	db, mock := mockDB(t)

	mock.ExpectQuery(`server_version_num`).
		WillReturnRows(sqlmock.NewRows([]string{"current_setting"}).AddRow(120015))
	mock.ExpectQuery(`pg_extension`).
		WillReturnError(errors.New("permission denied for table pg_extension"))
	mock.ExpectQuery(`rds\.superuser_reserved_connections`).
		WillReturnError(errors.New("permission denied for view pg_settings"))
	mock.ExpectQuery(`is_superuser`).
		WillReturnError(errors.New("connection reset"))

	caps, err := NewCapabilityDetector(db, util.NewNopLogger()).Detect(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	if caps.Version != 12 {
		t.Errorf("Version: expected 12; actual %d", caps.Version)
	}
	if caps.IsManaged || caps.HasSuperuser {
		t.Errorf("Expected failed lookups to default to false; actual managed=%t superuser=%t", caps.IsManaged, caps.HasSuperuser)
	}
	if len(caps.Extensions) != 0 {
		t.Errorf("Expected no extensions; actual %s", pretty.Sprint(caps.Extensions))
	}
	if diff := pretty.Compare([]state.MetricCategory{state.CategoryBlockingSessions}, EligibleCategories(caps)); diff != "" {
		t.Errorf("EligibleCategories: diff (-want +got):\n%s", diff)
	}

	expectationsMet(t, mock)
}

func TestCapabilityDetectVersionFailure(t *testing.T) {
	db, mock := mockDB(t)

	mock.ExpectQuery(`server_version_num`).
		WillReturnError(errors.New("server closed the connection unexpectedly"))

	_, err := NewCapabilityDetector(db, util.NewNopLogger()).Detect(context.Background())

	var capErr *state.CapabilityError
	if !errors.As(err, &capErr) {
		t.Errorf("Expected CapabilityError; actual %v", err)
	}
	expectationsMet(t, mock)
}
