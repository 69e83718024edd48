package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Runner starts external binaries. Tests swap it for a fake.
type Runner interface {
	// Output runs name to completion and returns its stdout and stderr.
	Output(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
	// Start launches name and returns its stdout. Closing the stream ends the process.
	Start(ctx context.Context, name string, args ...string) (io.ReadCloser, error)
}

// ExecRunner runs binaries with os/exec.
type ExecRunner struct {
	Log *logrus.Entry
}

func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func (r *ExecRunner) Start(ctx context.Context, name string, args ...string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ProcessError{Name: name, Err: err}
	}

	log := r.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("process", name)
	stderr := log.WriterLevel(logrus.DebugLevel)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = stderr.Close()
		return nil, &ProcessError{Name: name, Err: err}
	}
	log.WithField("pid", cmd.Process.Pid).Debug("process started")

	return &processStream{cmd: cmd, stdout: stdout, stderr: stderr, log: log}, nil
}

// processStream exposes a running process's stdout. Close kills the process
// unless its output already ended, reaps it and returns its exit error.
type processStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.Closer
	log    *logrus.Entry

	eof  atomic.Bool
	once sync.Once
	err  error
}

func (p *processStream) Read(b []byte) (int, error) {
	n, err := p.stdout.Read(b)
	if err == io.EOF {
		p.eof.Store(true)
	}
	return n, err
}

func (p *processStream) Close() error {
	p.once.Do(func() {
		if !p.eof.Load() {
			_ = p.stdout.Close()
			// Kill fails harmlessly when the process already exited.
			_ = p.cmd.Process.Kill()
		}
		if err := p.cmd.Wait(); err != nil {
			p.err = fmt.Errorf("%s: %w", p.cmd.Path, err)
		}
		_ = p.stderr.Close()
		p.log.WithError(p.err).Debug("process reaped")
	})
	return p.err
}
