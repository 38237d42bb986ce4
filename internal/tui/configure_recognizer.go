package tui

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/andlab/doctas/internal/config"
	"github.com/andlab/doctas/internal/language"
)

// languageOptions lists the system locale and the offered locales, keeping
// current selectable even when it was typed into the config file by hand.
func languageOptions(current string) []huh.Option[string] {
	options := []huh.Option[string]{
		huh.NewOption(languageName(""), ""),
	}
	if current != "" && !language.IsKnown(current) {
		options = append(options, huh.NewOption(current+" (from config)", current))
	}
	for _, l := range language.List() {
		label := l.Name
		if l.NativeName != l.Name {
			label = fmt.Sprintf("%s - %s", l.Name, l.NativeName)
		}
		options = append(options, huh.NewOption(label, l.Code))
	}
	return options
}

func editRecognizer(cfg *config.Config) error {
	r := cfg.Recognizer
	backend := r.Backend
	locale := r.Language
	model := r.LanguageModel
	partials := r.PartialResults

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Recognition Backend").
				Description("Where audio is sent for speech recognition").
				Options(
					huh.NewOption("Local recognition server (websocket)", "websocket"),
					huh.NewOption("Google Cloud Speech-to-Text", "google"),
				).
				Value(&backend),
			huh.NewSelect[string]().
				Title("Language").
				Description("Locale of the dictation").
				Options(languageOptions(locale)...).
				Value(&locale),
			huh.NewSelect[string]().
				Title("Language Model").
				Options(
					huh.NewOption("Free form (dictation)", "free_form"),
					huh.NewOption("Web search (short phrases)", "web_search"),
				).
				Value(&model),
			huh.NewConfirm().
				Title("Show partial results while speaking?").
				Value(&partials),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Recognizer.Backend = backend
	cfg.Recognizer.Language = locale
	cfg.Recognizer.LanguageModel = model
	cfg.Recognizer.PartialResults = partials

	if backend == "google" {
		return editGoogle(cfg)
	}
	return editWebSocket(cfg)
}

func editWebSocket(cfg *config.Config) error {
	ws := cfg.Recognizer.WebSocket
	url := ws.URL
	apiKey := ws.APIKey
	dial := ws.DialTimeout.String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server URL").
				Placeholder("ws://127.0.0.1:2700/v1/recognize").
				Value(&url),
			huh.NewInput().
				Title("API Key").
				Description("Optional bearer token").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewInput().
				Title("Dial Timeout").
				Value(&dial).
				Validate(validateDuration),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Recognizer.WebSocket.URL = url
	cfg.Recognizer.WebSocket.APIKey = apiKey
	cfg.Recognizer.WebSocket.DialTimeout = parseDuration(dial, ws.DialTimeout)
	return nil
}

func editGoogle(cfg *config.Config) error {
	g := cfg.Recognizer.Google
	creds := g.CredentialsFile
	model := g.Model

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Credentials File").
				Description("Service account JSON. Leave empty for application default credentials.").
				Value(&creds),
			huh.NewInput().
				Title("Model").
				Placeholder("latest_long").
				Value(&model),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Recognizer.Google.CredentialsFile = creds
	cfg.Recognizer.Google.Model = model
	return nil
}
