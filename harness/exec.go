package harness

import (
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/aoikida/Orthrus/cpuset"
)

// Executor turns a Launch into a runnable command. Selected once per
// invocation: servers always run locally, the client runs either
// locally or on a remote load host over SSH.
type Executor interface {
	Command(l Launch) *exec.Cmd

	// FetchFile copies a file produced on the executor's host into a
	// local path. For local execution the file is already local.
	FetchFile(remotePath, localPath string) error

	// RemoveFile deletes a stale file on the executor's host.
	RemoveFile(path string) error
}

type LocalExec struct{}

func (LocalExec) Command(l Launch) *exec.Cmd {
	argv := append([]string{l.Path}, l.Args...)
	if len(l.CPUs) > 0 {
		argv = append([]string{"taskset", "-c", cpuset.Format(l.CPUs)}, argv...)
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}
	return cmd
}

func (LocalExec) FetchFile(remotePath, localPath string) error {
	if remotePath == localPath {
		return nil
	}
	data, err := os.ReadFile(remotePath)
	if err != nil {
		return errors.Wrap(err, "fetch local file")
	}
	return os.WriteFile(localPath, data, 0644)
}

func (LocalExec) RemoveFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SSHExec runs commands on a remote load host. Workdir, when set, is
// entered before the command runs.
type SSHExec struct {
	Host    string
	Workdir string
}

func (s SSHExec) Command(l Launch) *exec.Cmd {
	argv := append([]string{l.Path}, l.Args...)
	if len(l.CPUs) > 0 {
		argv = append([]string{"taskset", "-c", cpuset.Format(l.CPUs)}, argv...)
	}
	if len(l.Env) > 0 {
		argv = append(append([]string{"env"}, l.Env...), argv...)
	}
	line := shellJoin(argv)
	if s.Workdir != "" {
		line = "cd " + shellQuote(s.Workdir) + " && " + line
	}
	return exec.Command("ssh", s.Host, line)
}

func (s SSHExec) FetchFile(remotePath, localPath string) error {
	out, err := os.Create(localPath)
	if err != nil {
		return errors.Wrap(err, "create local copy")
	}
	defer out.Close()
	cmd := exec.Command("ssh", s.Host, "cat "+shellQuote(remotePath))
	cmd.Stdout = out
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "fetch %s from %s", remotePath, s.Host)
	}
	return nil
}

func (s SSHExec) RemoveFile(path string) error {
	return exec.Command("ssh", s.Host, "rm -f "+shellQuote(path)).Run()
}

// Mkdir creates a directory on the remote host.
func (s SSHExec) Mkdir(path string) error {
	return exec.Command("ssh", s.Host, "mkdir -p "+shellQuote(path)).Run()
}

// CheckExecutable verifies the remote client binary before any case
// runs, honoring Workdir for relative paths.
func (s SSHExec) CheckExecutable(path string) error {
	line := "test -x " + shellQuote(path)
	if s.Workdir != "" {
		line = "cd " + shellQuote(s.Workdir) + " && " + line
	}
	if err := exec.Command("ssh", s.Host, line).Run(); err != nil {
		return errors.Errorf("%s is not executable on %s", path, s.Host)
	}
	return nil
}

// shellQuote single-quotes a token for a POSIX shell.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\"'`$\\!*?[]{}()<>|&;~#") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}
