package lifecycle

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/187j3x1/nghttp2/pkg/listener"
)

// EnvDaemonChild is set to "1" in the environment of the re-executed
// daemon process.
const EnvDaemonChild = "NGHTTPX_DAEMON_CHILD"

// IsDaemonChild reports whether the process was started by OS.Daemonize.
func IsDaemonChild(getenv func(string) string) bool {
	return getenv(EnvDaemonChild) == "1"
}

// OS is the System backed by the running process.
type OS struct {
	// Args are the arguments passed to the re-executed daemon. Nil uses
	// os.Args[1:].
	Args []string

	// Logger receives daemonization diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

var _ System = (*OS)(nil)

func (*OS) Geteuid() int         { return unix.Geteuid() }
func (*OS) Setgid(gid int) error { return unix.Setgid(gid) }
func (*OS) Setuid(uid int) error { return unix.Setuid(uid) }
func (*OS) Getpid() int          { return os.Getpid() }

func (*OS) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

// Daemonize re-executes the binary in a new session with stdio on
// /dev/null and the listening sockets as descriptors 3 and up. In the
// re-executed process it changes the working directory to "/" and reports
// parent == false.
func (s *OS) Daemonize(listeners Exporter) (bool, error) {
	if IsDaemonChild(os.Getenv) {
		if err := os.Chdir("/"); err != nil {
			return false, fmt.Errorf("chdir /: %w", err)
		}
		return false, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return false, fmt.Errorf("locate executable: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return false, fmt.Errorf("get working directory: %w", err)
	}

	files, err := listeners.Files()
	if err != nil {
		return false, err
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return false, err
	}
	defer devNull.Close()

	args := s.Args
	if args == nil {
		args = os.Args[1:]
	}

	cmd := exec.Command(exe, args...)
	cmd.Dir = wd
	cmd.Env = append(os.Environ(),
		EnvDaemonChild+"=1",
		listener.EnvListenFDs+"="+strconv.Itoa(len(files)),
	)
	cmd.ExtraFiles = files
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("start daemon process: %w", err)
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("daemon process started", "pid", cmd.Process.Pid)

	if err := cmd.Process.Release(); err != nil {
		return false, err
	}
	return true, nil
}
