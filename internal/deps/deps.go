// Package deps checks for the external programs doctas shells out to.
package deps

import (
	"os/exec"
	"strings"
)

// Status represents the installation status of a dependency
type Status struct {
	Name      string
	Installed bool
	Path      string
	Version   string
}

// Check looks name up in PATH and, when versionArgs are given, records the
// first line the program prints for them.
func Check(name string, versionArgs ...string) Status {
	path, err := exec.LookPath(name)
	if err != nil {
		return Status{Name: name}
	}

	status := Status{Name: name, Installed: true, Path: path}
	if len(versionArgs) == 0 {
		return status
	}
	output, err := exec.Command(path, versionArgs...).Output()
	if err == nil {
		first, _, _ := strings.Cut(string(output), "\n")
		status.Version = strings.TrimSpace(first)
	}
	return status
}

// CheckPwRecord checks for the PipeWire recorder used for microphone capture.
func CheckPwRecord() Status {
	return Check("pw-record", "--version")
}

// CheckXdgOpen checks for the desktop URL opener.
func CheckXdgOpen() Status {
	return Check("xdg-open")
}

// CheckNotifySend checks for the desktop notification client.
func CheckNotifySend() Status {
	return Check("notify-send", "--version")
}
