// Package testing provides testing utilities for code built on go-fetch.
//
// # Mocks
//
// The mocks subpackage provides testify-based mock implementations of the
// client interfaces:
//   - Transport (http.Transport) with helpers for scripted responses and failures
//
// # Fixtures
//
// The fixtures subpackage provides response builders and a recording upstream:
//   - JSON, text and status responses for Builder.Fake tables
//   - An echo-backed HTTP server that records every request it receives and
//     answers with scripted statuses
//
// # Usage
//
// Import the specific subpackages you need:
//
//	import (
//		"github.com/gaborage/go-fetch/testing/mocks"
//		"github.com/gaborage/go-fetch/testing/fixtures"
//	)
package testing
