package dtu

import "time"

// Config holds the operator-tunable parameters for a Client. Unlike the
// source's compile-time constants, these are meant to be loaded from the
// on-disk config (internal/config) and updated at runtime without
// restarting the process.
type Config struct {
	Server             string
	Port               uint16
	PowerLimitPercent  int
	PreventCloudErrors bool

	TickInterval       time.Duration
	KeepAliveInterval  time.Duration
}

// Defaults returns a Config with the source's own hardcoded intervals and an
// unrestricted (100%) power limit, following the teacher's Defaults() factory
// pattern (engine/config.go).
func Defaults() Config {
	return Config{
		Port:               10081,
		PowerLimitPercent:  100,
		PreventCloudErrors: true,
		TickInterval:       TickInterval,
		KeepAliveInterval:  KeepAliveInterval,
	}
}
