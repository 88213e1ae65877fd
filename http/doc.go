// Package http provides a fluent builder for outbound HTTP requests.
//
// A Builder accumulates headers, query parameters, a body and transport options, then
// dispatches them with a verb method (Get, Post, ...). Relative paths are resolved against
// the builder's base URL with a trailing slash appended.
//
// Retries
//   - Controlled via Builder.Retry(times, sleep, when).
//   - A 2xx response is returned immediately.
//   - Without a callback every other response, and every failed attempt, is retried until
//     times additional attempts have been made.
//   - With a callback, the callback decides. It may reconfigure the builder before the
//     next attempt, for example by registering mocked responses with Fake.
//   - Non-2xx responses are returned without an error once retrying stops.
//   - Configuration and URL errors are never retried.
//
// Mocked responses
//   - Builder.Fake registers URL patterns. While any pattern is registered no request
//     reaches the transport; the first matching pattern answers.
//   - "*" matches everything. Other patterns match when their literal segments between
//     "*" tokens occur in the URL in order.
//
// Notes
//   - The request body is encoded again on every attempt.
//   - Builder.Timeout bounds each attempt separately.
package http
