//go:build linux

package engine

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// defaultSchedPriority is the SCHED_FIFO priority used when SC_SCHED_PRIO is
// unset or invalid, per spec §6.
const defaultSchedPriority = 5

// schedPriorityFromEnv reads SC_SCHED_PRIO (an integer) and clips it to the
// range SCHED_FIFO permits on this system.
func schedPriorityFromEnv() int {
	prio := defaultSchedPriority
	if v := os.Getenv("SC_SCHED_PRIO"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			prio = parsed
		}
	}

	lo, errLo := unix.SchedGetPriorityMin(unix.SCHED_FIFO)
	hi, errHi := unix.SchedGetPriorityMax(unix.SCHED_FIFO)
	if errLo == nil && prio < lo {
		prio = lo
	}
	if errHi == nil && prio > hi {
		prio = hi
	}
	return prio
}

// raiseWorkerPriority attempts to move the calling OS thread to the
// SCHED_FIFO real-time class at the configured priority. Failure (most
// commonly insufficient privilege) is non-fatal: the worker keeps running
// at its default priority, just with a higher chance of missing the
// audio deadline under load.
func raiseWorkerPriority() error {
	prio := schedPriorityFromEnv()
	param := &unix.SchedParam{Priority: int32(prio)}
	if err := unix.SchedSetscheduler(0, unix.SCHED_FIFO, param); err != nil {
		return fmt.Errorf("engine: SchedSetscheduler(SCHED_FIFO, %d): %w", prio, err)
	}
	return nil
}
