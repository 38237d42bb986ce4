package tui

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/andlab/doctas/internal/config"
	"github.com/andlab/doctas/internal/notify"
)

// editNotifications handles the notifications section edit with type and custom messages
func editNotifications(cfg *config.Config) error {
	enabled := cfg.Notifications.Enabled
	notifType := cfg.Notifications.Type
	if notifType == "" || notifType == "none" {
		notifType = "desktop"
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable notifications?").
				Description("Announce listening, submission results and recognition failures").
				Value(&enabled),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Notifications.Enabled = enabled
	if !enabled {
		return nil
	}

	var customize bool
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Notification Type").
				Options(
					huh.NewOption("Desktop notifications (notify-send)", "desktop"),
					huh.NewOption("Log only", "log"),
				).
				Value(&notifType),
			huh.NewConfirm().
				Title("Configure custom notification messages?").
				Affirmative("Yes").
				Negative("No, use defaults").
				Value(&customize),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Notifications.Type = notifType
	if customize {
		return editNotificationMessages(cfg)
	}
	return nil
}

func editNotificationMessages(cfg *config.Config) error {
	for {
		var options []huh.Option[string]
		for _, def := range notify.MessageDefs {
			options = append(options, huh.NewOption(messageLabel(cfg, def), def.ConfigKey))
		}
		options = append(options, huh.NewOption("Back", "back"))

		var selected string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Notification Messages").
					Description("Select a message to edit").
					Options(options...).
					Value(&selected),
			),
		).WithTheme(getTheme())
		if err := form.Run(); err != nil {
			return err
		}
		if selected == "back" {
			return nil
		}
		_ = editMessage(cfg, selected)
	}
}

// messageLabel shows a message key with its effective title and body.
func messageLabel(cfg *config.Config, def notify.MessageDef) string {
	title, body := def.DefaultTitle, def.DefaultBody
	if msg := cfg.Notifications.Messages.Lookup(def.ConfigKey); msg != nil {
		if msg.Title != "" {
			title = msg.Title
		}
		if msg.Body != "" {
			body = msg.Body
		}
	}
	text := title
	if body != "" {
		text += " / " + body
	}
	if r := []rune(text); len(r) > 40 {
		text = string(r[:40]) + "..."
	}
	return fmt.Sprintf("%s: %q", def.ConfigKey, text)
}

func editMessage(cfg *config.Config, key string) error {
	msg := cfg.Notifications.Messages.Lookup(key)
	if msg == nil {
		return fmt.Errorf("unknown message %q", key)
	}
	var def notify.MessageDef
	for _, d := range notify.MessageDefs {
		if d.ConfigKey == key {
			def = d
		}
	}

	title, body := msg.Title, msg.Body
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Description(fmt.Sprintf("Default: %s", def.DefaultTitle)).
				Placeholder(def.DefaultTitle).
				Value(&title),
			huh.NewInput().
				Title("Body").
				Description(fmt.Sprintf("Default: %s", def.DefaultBody)).
				Placeholder(def.DefaultBody).
				Value(&body),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}

	*msg = config.MessageConfig{Title: title, Body: body}
	return nil
}
