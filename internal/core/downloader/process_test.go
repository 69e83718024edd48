//go:build unix

package downloader

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"syscall"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func requireBinaries(t *testing.T, names ...string) {
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("%s not found in PATH", name)
		}
	}
}

func TestExecRunner(t *testing.T) {
	requireBinaries(t, "yes", "echo", "sh")

	Convey("ExecRunner streams", t, func() {
		runner := &ExecRunner{}

		Convey("Close should kill and reap a running process", func() {
			rc, err := runner.Start(context.Background(), "yes")
			So(err, ShouldBeNil)

			buf := make([]byte, 64)
			_, err = io.ReadFull(rc, buf)
			So(err, ShouldBeNil)

			ps := rc.(*processStream)
			pid := ps.cmd.Process.Pid

			So(rc.Close(), ShouldNotBeNil)
			So(ps.cmd.ProcessState, ShouldNotBeNil)
			So(ps.cmd.ProcessState.Exited(), ShouldBeFalse)
			So(errors.Is(syscall.Kill(pid, 0), syscall.ESRCH), ShouldBeTrue)

			// a second Close reports the same result without waiting again
			So(rc.Close(), ShouldEqual, ps.err)
		})

		Convey("A clean exit should close without error", func() {
			rc, err := runner.Start(context.Background(), "echo", "hi")
			So(err, ShouldBeNil)

			out, err := io.ReadAll(rc)
			So(err, ShouldBeNil)
			So(string(out), ShouldEqual, "hi\n")
			So(rc.Close(), ShouldBeNil)
			So(rc.(*processStream).cmd.ProcessState.Success(), ShouldBeTrue)
		})

		Convey("A failing process should surface its exit status on Close", func() {
			rc, err := runner.Start(context.Background(), "sh", "-c", "echo part; exit 3")
			So(err, ShouldBeNil)

			out, err := io.ReadAll(rc)
			So(err, ShouldBeNil)
			So(string(out), ShouldEqual, "part\n")

			err = rc.Close()
			var exitErr *exec.ExitError
			So(errors.As(err, &exitErr), ShouldBeTrue)
			So(exitErr.ExitCode(), ShouldEqual, 3)
		})

		Convey("Cancelling the context should end the stream", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			rc, err := runner.Start(ctx, "yes")
			So(err, ShouldBeNil)

			done := make(chan error, 1)
			go func() {
				_, err := io.Copy(io.Discard, rc)
				done <- err
			}()
			cancel()

			select {
			case <-done:
			case <-time.After(5 * time.Second):
				So("reader still running after cancel", ShouldBeEmpty)
			}
			So(rc.Close(), ShouldNotBeNil)
			So(rc.(*processStream).cmd.ProcessState, ShouldNotBeNil)
		})

		Convey("A missing binary should be a spawn error", func() {
			_, err := runner.Start(context.Background(), "streamdl-no-such-binary")
			So(errors.Is(err, ErrProcessSpawn), ShouldBeTrue)
		})
	})
}
