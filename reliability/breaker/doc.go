// Package breaker provides circuit breaking around calls to downstream
// enrichment providers. A breaker starts closed, trips open after a run of
// consecutive failures, and probes recovery through a half-open state.
package breaker
