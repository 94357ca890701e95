// Package blocks provides the built-in block library: passthrough,
// transform, email_classify, http_fetch, and fanout. Network-calling blocks
// compose the reliability primitives (cache, rate limiter, circuit breaker,
// retry) around each outbound request and honor the run's execution mode,
// returning synthesized data in demo mode and fixtures in test mode.
package blocks
