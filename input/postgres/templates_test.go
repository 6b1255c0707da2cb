package postgres

import (
	"errors"
	"strings"
	"testing"

	"github.com/pgtelemetry/collector/state"
)

var templateNameTests = []struct {
	category state.MetricCategory
	version  int
	managed  bool
	expected string
}{
	{state.CategorySlowQueries, 120015, false, "slow_queries/total_time"},
	{state.CategorySlowQueries, 130012, false, "slow_queries/total_exec_time"},
	{state.CategorySlowQueries, 150004, true, "slow_queries/total_exec_time"},
	{state.CategoryWaitEvents, 150004, false, "wait_events/pg_wait_sampling"},
	{state.CategoryWaitEvents, 150004, true, "wait_events/pg_stat_activity"},
	{state.CategoryBlockingSessions, 120015, false, "blocking_sessions/v12"},
	{state.CategoryBlockingSessions, 130012, false, "blocking_sessions/v12"},
	{state.CategoryBlockingSessions, 160002, false, "blocking_sessions/v14"},
	{state.CategoryBlockingSessions, 140010, true, "blocking_sessions/managed"},
	{state.CategoryIndividualQueries, 120015, false, "individual_queries/all_backends"},
	{state.CategoryIndividualQueries, 130012, false, "individual_queries/client_backends"},
	{state.CategoryIndividualQueries, 150004, true, "individual_queries/all_backends"},
}

func TestTemplateName(t *testing.T) {
	for _, test := range templateNameTests {
		caps := state.NewCapabilities(test.version, test.managed, false, enabled(state.ExtensionPgStatStatements))
		actual, err := TemplateName(test.category, caps)
		if err != nil {
			t.Errorf("%s on %d: unexpected error: %s", test.category, test.version, err)
			continue
		}
		if actual != test.expected {
			t.Errorf("%s on %d (managed=%t): expected %s, got %s", test.category, test.version, test.managed, test.expected, actual)
		}
	}
}

func TestTemplateUnsupportedVersion(t *testing.T) {
	caps := state.NewCapabilities(110020, false, true, nil)
	for _, category := range state.AllCategories {
		_, err := TemplateName(category, caps)
		var versionErr *state.UnsupportedVersionError
		if !errors.As(err, &versionErr) {
			t.Errorf("%s: expected UnsupportedVersionError, got %v", category, err)
		}
		if !errors.Is(err, state.ErrUnsupportedVersion) {
			t.Errorf("%s: expected error to match ErrUnsupportedVersion", category)
		}
	}
}

var statementsExtensionVersionTests = []struct {
	version     int
	installed   string
	expectError bool
}{
	{120015, "1.7", false},
	{130012, "1.7", true},
	{150004, "1.7", true},
	{150004, "1.8", false},
	{160002, "1.10", false},
	{150004, "", true},
}

func TestTemplateStatementsExtensionVersion(t *testing.T) {
	for _, test := range statementsExtensionVersionTests {
		caps := state.NewCapabilities(test.version, false, true, map[string]state.ExtensionInfo{
			state.ExtensionPgStatStatements: {Name: state.ExtensionPgStatStatements, Version: test.installed, Enabled: true},
		})
		_, err := TemplateName(state.CategorySlowQueries, caps)
		if test.expectError != (err != nil) {
			t.Errorf("pg_stat_statements %q on %d: expected err: %t; actual: %v", test.installed, test.version, test.expectError, err)
			continue
		}
		if err != nil && !errors.Is(err, state.ErrUnsupportedVersion) {
			t.Errorf("pg_stat_statements %q on %d: expected error to match ErrUnsupportedVersion, got %v", test.installed, test.version, err)
		}
	}
}

func TestTemplateSQL(t *testing.T) {
	for key, template := range queryTemplates {
		if strings.Contains(template.SQL, "%!") {
			t.Errorf("%s: bad format verb in SQL", template.Name)
		}
		if key.category == state.CategorySlowQueries {
			if !strings.Contains(template.SQL, "pss."+SelectDialect(key.bucket.version()).String()) {
				t.Errorf("%s: SQL does not use the %s column", template.Name, SelectDialect(key.bucket.version()))
			}
			if !strings.Contains(template.SQL, "NOT LIKE '"+QueryMarkerSQL+"%'") {
				t.Errorf("%s: own queries are not excluded", template.Name)
			}
		}
	}
}
