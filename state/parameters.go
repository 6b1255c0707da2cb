package state

import (
	"github.com/pgtelemetry/collector/config"
	"github.com/pgtelemetry/collector/util"
)

const (
	MaxCountThreshold              = 30
	DefaultCountThreshold          = config.DefaultQueryMonitoringCountThreshold
	DefaultResponseTimeThresholdMs = config.DefaultQueryMonitoringResponseTimeThreshold
)

// CommonParameters - Per-cycle request shape shared by all category queries of one instance
type CommonParameters struct {
	InstanceName            string
	Databases               []string
	CountThreshold          int
	ResponseTimeThresholdMs int
	MaxQueryLength          int
	Host                    string
	Port                    int
	IsManaged               bool
	Version                 int
}

// ClampCountThreshold - Negative values fall back to the default, values above the maximum are capped
func ClampCountThreshold(threshold int) int {
	if threshold < 0 {
		return DefaultCountThreshold
	}
	if threshold > MaxCountThreshold {
		return MaxCountThreshold
	}
	return threshold
}

// ClampResponseTimeThreshold - Negative values fall back to the default
func ClampResponseTimeThreshold(thresholdMs int) int {
	if thresholdMs < 0 {
		return DefaultResponseTimeThresholdMs
	}
	return thresholdMs
}

// NewCommonParameters - Derives the cycle's parameters from static config and detected capabilities
func NewCommonParameters(logger *util.Logger, server config.ServerConfig, caps Capabilities) CommonParameters {
	countThreshold := ClampCountThreshold(server.QueryMonitoringCountThreshold)
	if countThreshold != server.QueryMonitoringCountThreshold {
		logger.PrintWarning("query_monitoring_count_threshold %d is out of range [0, %d], using %d", server.QueryMonitoringCountThreshold, MaxCountThreshold, countThreshold)
	}

	responseTimeThreshold := ClampResponseTimeThreshold(server.QueryMonitoringResponseTimeThreshold)
	if responseTimeThreshold != server.QueryMonitoringResponseTimeThreshold {
		logger.PrintWarning("query_monitoring_response_time_threshold %d is negative, using %d", server.QueryMonitoringResponseTimeThreshold, responseTimeThreshold)
	}

	maxQueryLength := server.MaxQueryLength
	if maxQueryLength <= 0 {
		maxQueryLength = config.DefaultMaxQueryLength
	}

	return CommonParameters{
		InstanceName:            server.SectionName,
		Databases:               server.GetDatabases(),
		CountThreshold:          countThreshold,
		ResponseTimeThresholdMs: responseTimeThreshold,
		MaxQueryLength:          maxQueryLength,
		Host:                    server.GetDbHost(),
		Port:                    server.GetDbPortOrDefault(),
		IsManaged:               caps.IsManaged,
		Version:                 caps.Version,
	}
}
