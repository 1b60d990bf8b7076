/*
Package ports defines the driven ports (interfaces) around the strata core.

These interfaces decouple the store and the history from the outside world, so that
notification sinks and checkpoint backends can be swapped without touching the core.

# Key Interfaces

  - Notifier: the notification channel the core publishes typed events to.
  - CheckpointStore: persists and loads workspace checkpoints (memory, file, Redis).
  - DistributedLocker: coordinates checkpoint access across processes.
*/
package ports
