package main

import (
	"fmt"
	"strings"

	"github.com/andlab/doctas/internal/daemon"
)

// formatStatus renders a status reply for the terminal without styling.
func formatStatus(s daemon.Status) string {
	var b strings.Builder
	v := s.View

	fmt.Fprintf(&b, "State:      %s\n", v.Label)
	if v.Detail != "" {
		fmt.Fprintf(&b, "Detail:     %s\n", v.Detail)
	}
	fmt.Fprintf(&b, "Listening:  %t\n", v.Listening)
	if s.Session.ErrorStreak > 0 {
		fmt.Fprintf(&b, "Errors:     %d in a row\n", s.Session.ErrorStreak)
	}

	text := strings.TrimSpace(v.Display)
	if text == "" {
		text = "(empty)"
	}
	fmt.Fprintf(&b, "Transcript: %s\n", text)

	if v.Summary != "" {
		fmt.Fprintf(&b, "Record:     %s\n", v.Summary)
	}
	return b.String()
}
