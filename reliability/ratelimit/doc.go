// Package ratelimit provides token-bucket admission control for named
// downstream services. Acquire suspends the caller until the next token is
// available; TryAcquire is the non-blocking variant.
package ratelimit
