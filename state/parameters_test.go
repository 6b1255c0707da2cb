package state_test

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/pgtelemetry/collector/config"
	"github.com/pgtelemetry/collector/state"
	"github.com/pgtelemetry/collector/util"
)

func TestClampCountThreshold(t *testing.T) {
	for input := -100; input <= 100; input++ {
		actual := state.ClampCountThreshold(input)
		if actual < 0 || actual > state.MaxCountThreshold {
			t.Errorf("ClampCountThreshold(%d) = %d, outside [0, %d]", input, actual, state.MaxCountThreshold)
		}
		if input < 0 && actual != 20 {
			t.Errorf("ClampCountThreshold(%d) = %d, expected default 20", input, actual)
		}
		if input >= 0 && input <= state.MaxCountThreshold && actual != input {
			t.Errorf("ClampCountThreshold(%d) = %d, expected unchanged", input, actual)
		}
	}
}

func TestClampResponseTimeThreshold(t *testing.T) {
	for _, input := range []int{-100000, -500, -1} {
		if actual := state.ClampResponseTimeThreshold(input); actual != 500 {
			t.Errorf("ClampResponseTimeThreshold(%d) = %d, expected 500", input, actual)
		}
	}
	for _, input := range []int{0, 1, 500, 86400000} {
		if actual := state.ClampResponseTimeThreshold(input); actual != input {
			t.Errorf("ClampResponseTimeThreshold(%d) = %d, expected unchanged", input, actual)
		}
	}
}

func TestNewCommonParameters(t *testing.T) {
	server := config.ServerConfig{
		SectionName:                          "primary",
		DbHost:                               "10.1.2.3",
		DbPort:                               5433,
		DbName:                               "app",
		Databases:                            []string{"app", " billing "},
		QueryMonitoringCountThreshold:        45,
		QueryMonitoringResponseTimeThreshold: -3,
	}
	caps := state.NewCapabilities(150004, true, false, nil)

	actual := state.NewCommonParameters(util.NewNopLogger(), server, caps)
	expected := state.CommonParameters{
		InstanceName:            "primary",
		Databases:               []string{"app", "billing"},
		CountThreshold:          30,
		ResponseTimeThresholdMs: 500,
		MaxQueryLength:          4095,
		Host:                    "10.1.2.3",
		Port:                    5433,
		IsManaged:               true,
		Version:                 15,
	}
	if diff := pretty.Compare(actual, expected); diff != "" {
		t.Errorf("CommonParameters mismatch (-got +want):\n%s", diff)
	}
}
