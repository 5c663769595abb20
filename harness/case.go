// Package harness runs one benchmark case: a group of server processes
// plus one load-generating client, launched in order, run to completion
// under a shared deadline, and always torn down.
package harness

import (
	"fmt"
	"time"
)

// Launch describes one process to start. CPUs, when non-empty, pins the
// process with taskset. Env entries are KEY=VALUE pairs added to the
// inherited environment.
type Launch struct {
	Path string
	Args []string
	CPUs []int
	Env  []string
}

// Case is one named benchmark run. Servers start in order with a
// Stagger pause between them (a replica must be listening before the
// primary that connects to it); the client runs after all of them.
// Every process's output is interleaved into LogPath.
type Case struct {
	Name    string
	Servers []Launch
	Client  Launch
	LogPath string
	Timeout time.Duration
	Stagger time.Duration
}

// CaseError is the single failure a case surfaces: which case, at which
// stage, and where the interleaved log is for diagnosis.
type CaseError struct {
	Case    string
	Stage   string
	LogPath string
	Err     error
}

func (e *CaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("case %s failed at %s (log: %s): %v", e.Case, e.Stage, e.LogPath, e.Err)
	}
	return fmt.Sprintf("case %s failed at %s (log: %s)", e.Case, e.Stage, e.LogPath)
}

func (e *CaseError) Unwrap() error {
	return e.Err
}
