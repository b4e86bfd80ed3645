// Package browser finds, terminates and starts the browser process.
package browser

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bryanchriswhite/BrowserGuard/internal/logger"
)

// DefaultGrace is the wait between SIGTERM and SIGKILL.
const DefaultGrace = 2 * time.Second

// Controller kills and starts browser processes. Processes are matched by
// substring of their full command line, like pgrep -f.
type Controller struct {
	processName string
	grace       time.Duration

	procRoot string
	selfPID  int
	signal   func(pid int, sig unix.Signal) error
	sleep    func(time.Duration)
}

// NewController creates a controller for processes whose command line
// contains processName.
func NewController(processName string, grace time.Duration) *Controller {
	return &Controller{
		processName: processName,
		grace:       grace,
		procRoot:    "/proc",
		selfPID:     os.Getpid(),
		signal:      unix.Kill,
		sleep:       time.Sleep,
	}
}

// Find returns the PIDs of matching processes, excluding this process.
func (c *Controller) Find() ([]int, error) {
	entries, err := os.ReadDir(c.procRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.procRoot, err)
	}

	var pids []int
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == c.selfPID {
			continue
		}
		// Processes may exit between ReadDir and ReadFile
		raw, err := os.ReadFile(filepath.Join(c.procRoot, entry.Name(), "cmdline"))
		if err != nil || len(raw) == 0 {
			continue
		}
		cmdline := string(bytes.TrimRight(bytes.ReplaceAll(raw, []byte{0}, []byte{' '}), " "))
		if strings.Contains(cmdline, c.processName) {
			pids = append(pids, pid)
		}
	}
	sort.Ints(pids)
	return pids, nil
}

// KillIfRunning sends SIGTERM to every matching process, waits the grace
// period, then sends SIGKILL to survivors. No matching process is success.
func (c *Controller) KillIfRunning() error {
	log := logger.WithComponent("browser")

	pids, err := c.Find()
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		log.Debug().Str("process", c.processName).Msg("No browser process running")
		return nil
	}

	log.Info().Str("process", c.processName).Ints("pids", pids).Msg("Terminating browser")
	errs := c.signalAll(pids, unix.SIGTERM)

	c.sleep(c.grace)

	survivors, err := c.Find()
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	if len(survivors) > 0 {
		log.Warn().Ints("pids", survivors).Msg("Browser still running after SIGTERM, sending SIGKILL")
		errs = append(errs, c.signalAll(survivors, unix.SIGKILL)...)
	}
	return errors.Join(errs...)
}

func (c *Controller) signalAll(pids []int, sig unix.Signal) []error {
	var errs []error
	for _, pid := range pids {
		err := c.signal(pid, sig)
		if err == nil || errors.Is(err, unix.ESRCH) {
			continue
		}
		errs = append(errs, fmt.Errorf("failed to send %s to pid %d: %w", unix.SignalName(sig), pid, err))
	}
	return errs
}

// Start launches executable with url in its own session and does not wait
// for it.
func (c *Controller) Start(executable, url string) error {
	cmd := exec.Command(executable, url)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", executable, err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("failed to release %s: %w", executable, err)
	}

	logger.WithComponent("browser").Info().
		Str("executable", executable).
		Str("url", url).
		Int("pid", pid).
		Msg("Browser started")
	return nil
}
