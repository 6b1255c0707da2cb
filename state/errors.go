package state

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported PostgreSQL version")
	ErrTimeout            = errors.New("query timed out")
)

// CapabilityError - Capabilities could not be determined, nothing downstream can be trusted
type CapabilityError struct {
	Err error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability detection failed: %s", e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// UnsupportedVersionError - No query exists for this category on this server version
type UnsupportedVersionError struct {
	Category MetricCategory
	Version  int

	// Requirement, when set, names the missing prerequisite (e.g. an extension
	// version) instead of the minimum server version
	Requirement string
}

func (e *UnsupportedVersionError) Error() string {
	if e.Requirement != "" {
		return fmt.Sprintf("no %s query for PostgreSQL %d (%s)", e.Category, e.Version, e.Requirement)
	}
	return fmt.Sprintf("no %s query for PostgreSQL %d (%d or newer required)", e.Category, e.Version, MinSupportedPostgresVersion)
}

func (e *UnsupportedVersionError) Is(target error) bool {
	return target == ErrUnsupportedVersion
}

// QueryError - A category query failed to run or its rows could not be read
type QueryError struct {
	Category MetricCategory
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s query failed: %s", e.Category, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// TimeoutError - A query was cancelled by its statement timeout or context deadline
type TimeoutError struct {
	Operation string
	Err       error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %s", e.Operation, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// CollectorError - Aborts one instance's cycle
type CollectorError struct {
	Instance string
	Err      error
}

func (e *CollectorError) Error() string {
	return fmt.Sprintf("collection for %s aborted: %s", e.Instance, e.Err)
}

func (e *CollectorError) Unwrap() error {
	return e.Err
}
