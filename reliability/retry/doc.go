// Package retry provides bounded retry with exponential backoff and jitter
// around callables. Compose it with ratelimit and breaker around the same
// downstream call: rate-limit first, retry with backoff inside, circuit
// breaker as the outer guard.
package retry
