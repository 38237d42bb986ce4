package bus

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const SockName = "control.sock"
const PidName = "doctas.pid"
const ProtoVer = "0.1"

// DirEnv overrides the directory holding the socket and pid file.
const DirEnv = "DOCTAS_RUNTIME_DIR"

// Commands are single bytes, optionally followed by a quoted argument.
const (
	CmdToggle  byte = 't'
	CmdSend    byte = 'x'
	CmdClear   byte = 'c'
	CmdDismiss byte = 'd'
	CmdEdit    byte = 'e'
	CmdStatus  byte = 's'
	CmdVersion byte = 'v'
	CmdQuit    byte = 'q'
)

const replyTimeout = 10 * time.Second

// ~/.cache/doctas
func runtimeDir() (string, error) {
	if d := os.Getenv(DirEnv); d != "" {
		return d, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "doctas"), nil
}

func getSockPath() (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SockName), nil
}

func getPidPath() (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PidName), nil
}

// SockPath returns the control socket location.
func SockPath() (string, error) {
	p, err := getSockPath()
	if err != nil {
		return "", err
	}
	return filepath.Abs(p)
}

// PidPath returns the daemon pid file location.
func PidPath() (string, error) {
	p, err := getPidPath()
	if err != nil {
		return "", err
	}
	return filepath.Abs(p)
}

type socketManager struct {
	path string
}

func (s *socketManager) listen() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(s.path) // stale socket from last run
	return net.Listen("unix", s.path)
}

func (s *socketManager) dial() (net.Conn, error) {
	return net.Dial("unix", s.path)
}

func (s *socketManager) send(cmd byte, arg string) (string, error) {
	c, err := s.dial()
	if err != nil {
		return "", err
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(replyTimeout))

	if _, err := c.Write(EncodeCommand(cmd, arg)); err != nil {
		return "", err
	}
	return bufio.NewReader(c).ReadString('\n')
}

type pidManager struct {
	path string
}

func (p *pidManager) create() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func (p *pidManager) remove() error {
	return os.Remove(p.path)
}

// checkExisting fails if the pid file names a live process. A stale or
// garbled pid file is removed.
func (p *pidManager) checkExisting() error {
	pidData, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil || !p.isProcessAlive(pid) {
		_ = os.Remove(p.path)
		return nil
	}
	return fmt.Errorf("daemon already running with PID %d", pid)
}

func (p *pidManager) isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func defaultSocket() (*socketManager, error) {
	p, err := getSockPath()
	if err != nil {
		return nil, err
	}
	return &socketManager{path: p}, nil
}

func defaultPid() (*pidManager, error) {
	p, err := getPidPath()
	if err != nil {
		return nil, err
	}
	return &pidManager{path: p}, nil
}

func Listen() (net.Listener, error) {
	s, err := defaultSocket()
	if err != nil {
		return nil, err
	}
	return s.listen()
}

func Dial() (net.Conn, error) {
	s, err := defaultSocket()
	if err != nil {
		return nil, err
	}
	return s.dial()
}

// SendCommand sends a bare command and returns the reply line.
func SendCommand(cmd byte) (string, error) {
	return Send(cmd, "")
}

// Send sends cmd with an argument and returns the reply line.
func Send(cmd byte, arg string) (string, error) {
	s, err := defaultSocket()
	if err != nil {
		return "", err
	}
	return s.send(cmd, arg)
}

// EncodeCommand frames cmd and arg as one line. The argument is quoted so it
// may contain newlines.
func EncodeCommand(cmd byte, arg string) []byte {
	if arg == "" {
		return []byte{cmd, '\n'}
	}
	return append(append([]byte{cmd}, strconv.Quote(arg)...), '\n')
}

// DecodeCommand is the inverse of EncodeCommand.
func DecodeCommand(line string) (byte, string, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return 0, "", errors.New("empty command")
	}
	cmd, rest := line[0], line[1:]
	if rest == "" {
		return cmd, "", nil
	}
	arg, err := strconv.Unquote(rest)
	if err != nil {
		return cmd, "", fmt.Errorf("bad argument: %w", err)
	}
	return cmd, arg, nil
}

// ParseReply splits a reply line into its kind (OK, ERR or STATUS) and body.
func ParseReply(line string) (kind, body string) {
	line = strings.TrimRight(line, "\r\n")
	kind, body, _ = strings.Cut(line, " ")
	return kind, body
}

func CheckExistingDaemon() error {
	p, err := defaultPid()
	if err != nil {
		return err
	}
	return p.checkExisting()
}

func CreatePidFile() error {
	p, err := defaultPid()
	if err != nil {
		return err
	}
	return p.create()
}

func RemovePidFile() error {
	p, err := defaultPid()
	if err != nil {
		return err
	}
	return p.remove()
}
