package main

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	firstPort = 3001
	lastPort  = 3008

	// tailLines bounds how much of server.log a startup failure quotes.
	tailLines = 20
)

// findFreePort probes the desktop port range and returns the first port
// that accepts a bind. When the whole range is taken it returns the
// first port anyway; the server reports the conflict itself.
func findFreePort() int {
	for port := firstPort; port <= lastPort; port++ {
		l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err == nil {
			l.Close()
			return port
		}
	}
	return firstPort
}

// serverEnv is the environment the bundled server expects, appended to
// the launcher's own.
func serverEnv(cfg config, port int) []string {
	return []string{
		"PORT=" + strconv.Itoa(port),
		"HOSTNAME=127.0.0.1",
		"DESKTOP_MODE=true",
		"DATABASE_PATH=" + filepath.Join(cfg.dataDir, "stacklume.db"),
		"NODE_ENV=production",
	}
}

// serverProcess supervises the bundled persistence server.
type serverProcess struct {
	cmd     *exec.Cmd
	logFile *os.File
	logPath string
}

// startServer launches the persistence server on port with its output
// redirected to a fresh server.log under the data directory.
func startServer(cfg config, port int) (*serverProcess, error) {
	args := strings.Fields(cfg.serverCmd)
	if len(args) == 0 {
		return nil, fmt.Errorf("empty server command")
	}

	logPath := filepath.Join(cfg.dataDir, "server.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open server log: %w", err)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = cfg.serverDir
	cmd.Env = append(os.Environ(), serverEnv(cfg, port)...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("spawn server: %w", err)
	}
	log.WithFields(log.Fields{"pid": cmd.Process.Pid, "port": port}).Info("server started")
	return &serverProcess{cmd: cmd, logFile: logFile, logPath: logPath}, nil
}

// stop kills the server and releases its log file. The server holds the
// database open, so it must never outlive the launcher.
func (s *serverProcess) stop() {
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	_ = s.logFile.Close()
	log.Info("server stopped")
}

// logTail returns the last n lines of the file at path, for quoting
// server output in startup failures.
func logTail(path string, n int) string {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return "(no server output)"
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
