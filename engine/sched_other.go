//go:build !linux

package engine

// raiseWorkerPriority is a no-op outside Linux: SCHED_FIFO priority control
// is a Linux-specific facility per spec §6 ("Environment: SC_SCHED_PRIO ...
// on Linux").
func raiseWorkerPriority() error { return nil }
