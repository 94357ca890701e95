// Package types provides shared type definitions for the enrichflow engine.
//
// types is the lowest-level public package and depends on no internal
// package. It defines the structured Error/ErrorCode taxonomy used by the
// job processor, the workflow engine, the block contract, and the
// reliability primitives, so that upper layers agree on one error contract
// without circular dependencies.
package types
