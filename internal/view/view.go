// Package view projects a session snapshot onto what a screen shows: a status
// line, an accent tone and which controls are usable.
package view

import (
	"strings"

	"github.com/andlab/doctas/internal/gateway"
	"github.com/andlab/doctas/internal/session"
)

// Tone is the accent color family of the status line.
type Tone string

const (
	Neutral  Tone = "neutral"
	Active   Tone = "active"
	Busy     Tone = "busy"
	Positive Tone = "success"
	Negative Tone = "failure"
)

const maxLevel = 10

// View is everything a presentation layer needs to draw one frame.
type View struct {
	State     session.State `json:"state"`
	Label     string        `json:"label"`
	Tone      Tone          `json:"tone"`
	Display   string        `json:"display"`
	Level     int           `json:"level"`
	Listening bool          `json:"listening"`

	MicEnabled   bool `json:"mic_enabled"`
	SendEnabled  bool `json:"send_enabled"`
	ClearEnabled bool `json:"clear_enabled"`

	Record  *gateway.Record `json:"record,omitempty"`
	Summary string          `json:"summary,omitempty"`
	Detail  string          `json:"detail,omitempty"`
}

var labels = map[session.State]string{
	session.Idle:       "Ready to record",
	session.Listening:  "Listening...",
	session.Processing: "Analyzing medical data...",
	session.Success:    "Data captured successfully!",
	session.Error:      "Failed to process data",
}

var tones = map[session.State]Tone{
	session.Idle:       Neutral,
	session.Listening:  Active,
	session.Processing: Busy,
	session.Success:    Positive,
	session.Error:      Negative,
}

// Project maps a snapshot to a View. It has no side effects.
func Project(s session.Snapshot) View {
	v := View{
		State:        s.State,
		Label:        labels[s.State],
		Tone:         tones[s.State],
		Display:      s.Display,
		Level:        level(s.Amplitude),
		Listening:    s.Desired,
		MicEnabled:   s.State != session.Processing,
		SendEnabled:  strings.TrimSpace(s.Transcript) != "" && s.State != session.Processing,
		ClearEnabled: true,
	}
	if !s.Desired {
		v.Level = 0
	}

	if s.State == session.Error {
		switch s.Reason {
		case session.ReasonConnectivity:
			v.Label = "Speech service unavailable"
			v.Detail = s.LastError
		case session.ReasonExhausted:
			v.Label = "Stopped after repeated recognition errors"
			v.Detail = s.LastError
		case session.ReasonSubmission:
			v.Detail = s.Failure
		}
	}

	if s.State == session.Success && s.Record != nil {
		v.Record = s.Record
		v.Summary = s.Record.Summary()
	}
	return v
}

// level turns the amplitude scalar into a 0..10 meter reading.
func level(amplitude float32) int {
	switch {
	case amplitude <= 0:
		return 0
	case amplitude >= maxLevel:
		return maxLevel
	default:
		return int(amplitude + 0.5)
	}
}
