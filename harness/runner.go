package harness

import (
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// termGrace bounds how long teardown waits after signaling a server.
// A process still alive afterwards is logged and left; teardown is
// best-effort and never turns into a second failure.
const termGrace = 3 * time.Second

type Runner struct {
	ServerExec Executor
	ClientExec Executor
}

// NewRunner builds a runner whose servers execute locally and whose
// client executes on the given executor.
func NewRunner(client Executor) *Runner {
	return &Runner{ServerExec: LocalExec{}, ClientExec: client}
}

type serverProc struct {
	launch Launch
	cmd    *exec.Cmd
	done   chan error
	exited bool
}

// waitFor reports whether the process has exited, waiting at most d.
func (p *serverProc) waitFor(d time.Duration) bool {
	if p.exited {
		return true
	}
	select {
	case <-p.done:
		p.exited = true
		return true
	case <-time.After(d):
		return false
	}
}

// Run executes one case to completion. Exactly one error is surfaced
// (client failure or drain timeout); teardown of any still-running
// server always happens, including on early failure.
func (r *Runner) Run(c Case) error {
	deadline := time.Now().Add(c.Timeout)

	if err := os.MkdirAll(filepath.Dir(c.LogPath), 0755); err != nil {
		return &CaseError{Case: c.Name, Stage: "setup", LogPath: c.LogPath, Err: err}
	}
	logFile, err := os.Create(c.LogPath)
	if err != nil {
		return &CaseError{Case: c.Name, Stage: "setup", LogPath: c.LogPath, Err: err}
	}
	defer logFile.Close()

	var procs []*serverProc
	defer func() {
		r.terminate(c.Name, procs)
	}()

	for _, srv := range c.Servers {
		cmd := r.ServerExec.Command(srv)
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		if err := cmd.Start(); err != nil {
			return &CaseError{Case: c.Name, Stage: "launch", LogPath: c.LogPath,
				Err: errors.Wrapf(err, "start %s", srv.Path)}
		}
		p := &serverProc{launch: srv, cmd: cmd, done: make(chan error, 1)}
		go func() {
			p.done <- cmd.Wait()
		}()
		procs = append(procs, p)
		log.WithFields(log.Fields{"case": c.Name, "pid": cmd.Process.Pid}).
			Debug("started server ", srv.Path)
		time.Sleep(c.Stagger)
	}

	client := r.ClientExec.Command(c.Client)
	client.Stdout = logFile
	client.Stderr = logFile
	if err := client.Run(); err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			err = errors.Errorf("client exited with %d", ee.ExitCode())
		}
		return &CaseError{Case: c.Name, Stage: "client", LogPath: c.LogPath, Err: err}
	}

	// Drain: servers are expected to exit on their own once the client
	// is done. One deadline covers the whole case; the remaining budget
	// is recomputed for each wait, with a one-second floor.
	for _, p := range procs {
		remaining := time.Until(deadline)
		if remaining < time.Second {
			remaining = time.Second
		}
		if !p.waitFor(remaining) {
			return &CaseError{Case: c.Name, Stage: "drain", LogPath: c.LogPath,
				Err: errors.Errorf("server %s did not exit before the case deadline", p.launch.Path)}
		}
	}
	return nil
}

func (r *Runner) terminate(name string, procs []*serverProc) {
	var merr *multierror.Error
	for _, p := range procs {
		if p.waitFor(0) {
			continue
		}
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			merr = multierror.Append(merr, errors.Wrapf(err, "signal %s", p.launch.Path))
		}
	}
	for _, p := range procs {
		if !p.waitFor(termGrace) {
			merr = multierror.Append(merr,
				errors.Errorf("%s still running after termination grace", p.launch.Path))
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		log.WithField("case", name).Warn("teardown incomplete: ", err)
	}
}
