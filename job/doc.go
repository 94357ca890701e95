// Package job provides the background job lifecycle manager: a Store that
// tracks jobs with status, progress, and an append-only timeline, and a
// Processor that runs at most one runner per job id with bounded
// concurrency. Jobs are in-memory only; terminal jobs are garbage-collected
// by count ceiling and by age.
package job
