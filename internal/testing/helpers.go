// Package testing decides which omnilog tests may reach external services.
package testing

import (
	"os"
	"testing"
)

const (
	envUnitOnly    = "OMNILOG_UNIT_TESTS_ONLY"
	envIntegration = "OMNILOG_RUN_INTEGRATION_TESTS"
	envNATSURL     = "OMNILOG_NATS_URL"

	defaultNATSURL = "nats://127.0.0.1:4222"
)

// Unit returns true if running in unit test mode. Unit mode is the default;
// integration tests run only when OMNILOG_RUN_INTEGRATION_TESTS=true and
// OMNILOG_UNIT_TESTS_ONLY is not "true".
func Unit() bool {
	if os.Getenv(envUnitOnly) == "true" {
		return true
	}

	switch os.Getenv(envIntegration) {
	case "true":
		return false
	case "false":
		return true
	}

	return true
}

// Integration returns true if running in integration test mode.
// Integration tests need external services such as a NATS server.
func Integration() bool {
	return !Unit()
}

// SkipIfUnit skips the test if running in unit test mode.
func SkipIfUnit(t testing.TB, message ...string) {
	t.Helper()
	if Unit() {
		msg := "Skipping integration test in unit mode"
		if len(message) > 0 {
			msg = message[0]
		}
		t.Skip(msg)
	}
}

// SkipIfIntegration skips the test if running in integration test mode.
func SkipIfIntegration(t testing.TB, message ...string) {
	t.Helper()
	if Integration() {
		msg := "Skipping unit-only test in integration mode"
		if len(message) > 0 {
			msg = message[0]
		}
		t.Skip(msg)
	}
}

// NATSURL returns the server used by NATS integration tests
// (OMNILOG_NATS_URL, default nats://127.0.0.1:4222).
func NATSURL() string {
	if url := os.Getenv(envNATSURL); url != "" {
		return url
	}
	return defaultNATSURL
}
