package scanner

import "errors"

// Scanner errors
var (
	// ErrMonitorRunning indicates the monitor is already running
	ErrMonitorRunning = errors.New("monitor is already running")

	// ErrMonitorNotRunning indicates the monitor is not running
	ErrMonitorNotRunning = errors.New("monitor is not running")

	// ErrNoTransponders indicates an empty scan list
	ErrNoTransponders = errors.New("no transponders specified for scanning")

	// ErrInvalidInterval indicates a non-positive monitor interval
	ErrInvalidInterval = errors.New("monitor interval must be positive")

	// ErrInvalidHold indicates inconsistent hold counter settings
	ErrInvalidHold = errors.New("lost threshold must be below hold max")
)
