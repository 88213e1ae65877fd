package testing

import "time"

// Logger Constants
// These constants define common logger configurations used across test files.
const (
	// TestLoggerLevelDebug is the debug log level used in most tests
	TestLoggerLevelDebug = "debug"
	// TestLoggerLevelDisabled completely disables logging in tests
	TestLoggerLevelDisabled = "disabled"
)

// Request Constants
// Common base URLs and paths used across client tests.
const (
	TestBaseURL   = "https://api.example.local"
	TestUsersPath = "users"
	TestUsersURL  = TestBaseURL + "/users/"
	TestToken     = "test-token"
	TestUsername  = "testuser"
	TestPassword  = "testpass"
)

// Timing Constants
// Short durations that keep retry and timeout tests fast.
const (
	TestRetrySleep   = time.Millisecond
	TestShortTimeout = 20 * time.Millisecond
	TestSlowResponse = 200 * time.Millisecond
)
