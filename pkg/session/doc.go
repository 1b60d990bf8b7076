/*
Package session serializes access to persisted checkpoints.

A workspace is single-threaded, but the surfaces serving it (HTTP, MCP, the CLI) may
load and save the same checkpoint from several goroutines or replicas. Manager wraps a
ports.CheckpointStore with per-ID local locks and an optional distributed lock.
*/
package session
