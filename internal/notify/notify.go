package notify

import (
	"os/exec"

	"github.com/andlab/doctas/internal/logging"
	"github.com/andlab/doctas/internal/session"
)

type Notifier interface {
	Notify(title, body string)
	Error(msg string)
}

// New returns the notifier for typ: "desktop", "log" or anything else for Nop.
func New(typ string) Notifier {
	switch typ {
	case "desktop":
		return Desktop{}
	case "log":
		return Log{}
	default:
		return Nop{}
	}
}

type Desktop struct{}

func (Desktop) Notify(title, body string) {
	args := []string{"-a", "Doctas", title}
	if body != "" {
		args = append(args, body)
	}
	if err := exec.Command("notify-send", args...).Run(); err != nil {
		logger := logging.WithComponent("notify")
		logger.Warn().Err(err).Msg("failed to send notification")
	}
}

func (Desktop) Error(msg string) {
	cmd := exec.Command("notify-send", "-a", "Doctas", "-u", "critical", "Doctas Error", msg)
	if err := cmd.Run(); err != nil {
		logger := logging.WithComponent("notify")
		logger.Warn().Err(err).Msg("failed to send error notification")
	}
}

// Log writes notifications to the structured log instead of the desktop.
type Log struct{}

func (Log) Notify(title, body string) {
	logger := logging.WithComponent("notify")
	logger.Info().Str("title", title).Str("body", body).Msg("notification")
}

func (Log) Error(msg string) {
	logger := logging.WithComponent("notify")
	logger.Error().Str("title", "Doctas Error").Msg(msg)
}

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) Notify(title, body string) {}
func (Nop) Error(msg string)          {}

type MessageType int

const (
	ListeningStarted MessageType = iota
	ListeningStopped
	Processing
	SubmissionSucceeded
	SubmissionFailed
	RecognitionFailed
	ConfigReloaded
)

type Message struct {
	Title   string
	Body    string
	IsError bool
}

// MessageDef is the default text of a message and its config key.
type MessageDef struct {
	Type         MessageType
	ConfigKey    string
	DefaultTitle string
	DefaultBody  string
	IsError      bool
}

var MessageDefs = []MessageDef{
	{ListeningStarted, "listening_started", "Doctas", "Listening...", false},
	{ListeningStopped, "listening_stopped", "Doctas", "Ready to record", false},
	{Processing, "processing", "Doctas", "Analyzing medical data...", false},
	{SubmissionSucceeded, "submission_succeeded", "Data captured successfully!", "", false},
	{SubmissionFailed, "submission_failed", "Failed to process data", "Your transcript was kept. Try sending again.", true},
	{RecognitionFailed, "recognition_failed", "Speech recognition stopped", "", true},
	{ConfigReloaded, "config_reloaded", "Doctas", "Config reloaded", false},
}

// DefaultMessages resolves every MessageDef to its default text.
func DefaultMessages() map[MessageType]Message {
	msgs := make(map[MessageType]Message, len(MessageDefs))
	for _, def := range MessageDefs {
		msgs[def.Type] = Message{Title: def.DefaultTitle, Body: def.DefaultBody, IsError: def.IsError}
	}
	return msgs
}

// ForTransition picks the message announcing a session state change, plus a
// detail line to use when the message has no body of its own.
func ForTransition(from, to session.State, snap session.Snapshot) (MessageType, string, bool) {
	switch to {
	case session.Listening:
		return ListeningStarted, "", true
	case session.Idle:
		if from == session.Listening {
			return ListeningStopped, "", true
		}
	case session.Processing:
		return Processing, "", true
	case session.Success:
		detail := ""
		if snap.Record != nil {
			detail = snap.Record.Summary()
		}
		return SubmissionSucceeded, detail, true
	case session.Error:
		if snap.Reason == session.ReasonSubmission {
			return SubmissionFailed, snap.Failure, true
		}
		return RecognitionFailed, snap.LastError, true
	}
	return 0, "", false
}

// Dispatcher sends configured messages through a Notifier.
type Dispatcher struct {
	notifier Notifier
	messages map[MessageType]Message
}

func NewDispatcher(n Notifier, messages map[MessageType]Message) *Dispatcher {
	if messages == nil {
		messages = DefaultMessages()
	}
	return &Dispatcher{notifier: n, messages: messages}
}

func (d *Dispatcher) Send(mt MessageType, detail string) {
	msg, ok := d.messages[mt]
	if !ok {
		return
	}
	body := msg.Body
	if body == "" {
		body = detail
	}
	if msg.IsError {
		text := msg.Title
		if body != "" {
			text += ": " + body
		}
		d.notifier.Error(text)
		return
	}
	d.notifier.Notify(msg.Title, body)
}

// StateChanged makes a Dispatcher usable as a session observer.
func (d *Dispatcher) StateChanged(from, to session.State, snap session.Snapshot) {
	if mt, detail, ok := ForTransition(from, to, snap); ok {
		d.Send(mt, detail)
	}
}
