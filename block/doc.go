// Package block defines the contract between the workflow engine and the
// processing units it executes.
//
// A block is a polymorphic unit of work registered under a string type key.
// The engine resolves node types against a Registry, instantiates blocks
// through their factories, and passes every invocation the per-run
// ExecutionContext carrying secrets, variables, a logger, and the execution
// mode (production, demo, test).
package block
