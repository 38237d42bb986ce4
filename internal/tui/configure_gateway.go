package tui

import (
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/andlab/doctas/internal/config"
)

func editGateway(cfg *config.Config) error {
	g := cfg.Gateway
	provider := g.Provider

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Extraction Service").
				Description("Turns the transcript into name, age, gender, heart rate and SpO2").
				Options(
					huh.NewOption("HTTP endpoint", "http"),
					huh.NewOption("OpenAI", "openai"),
					huh.NewOption("Groq", "groq"),
				).
				Value(&provider),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}
	cfg.Gateway.Provider = provider

	if provider == "http" {
		if err := editEndpoint(cfg); err != nil {
			return err
		}
	} else if err := editLLM(cfg, provider); err != nil {
		return err
	}
	return editTimeouts(cfg)
}

func editEndpoint(cfg *config.Config) error {
	endpoint := cfg.Gateway.Endpoint
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Endpoint").
				Description(`Receives POST {"text": ...}`).
				Placeholder("http://127.0.0.1:8000/api/health-data").
				Value(&endpoint),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}
	cfg.Gateway.Endpoint = strings.TrimSpace(endpoint)
	return nil
}

func editLLM(cfg *config.Config, provider string) error {
	apiKey := ""
	if pc, ok := cfg.Providers[provider]; ok {
		apiKey = pc.APIKey
	}
	model := cfg.Gateway.Model
	keywords := strings.Join(cfg.Gateway.Keywords, ", ")

	envHint := "Leave empty to use " + config.EnvVarForProvider(provider)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API Key").
				Description(envHint).
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewInput().
				Title("Model").
				Description("Leave empty for the provider default").
				Value(&model),
			huh.NewInput().
				Title("Keywords").
				Description("Comma separated terms the model should spell exactly").
				Value(&keywords),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]config.ProviderConfig)
	}
	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		cfg.Providers[provider] = config.ProviderConfig{APIKey: apiKey}
	} else {
		delete(cfg.Providers, provider)
	}
	cfg.Gateway.Model = strings.TrimSpace(model)
	cfg.Gateway.Keywords = splitList(keywords)
	return nil
}

func editTimeouts(cfg *config.Config) error {
	g := cfg.Gateway
	connect := g.ConnectTimeout.String()
	request := g.RequestTimeout.String()
	socket := g.SocketTimeout.String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Connect Timeout").Value(&connect).Validate(validateDuration),
			huh.NewInput().Title("Request Timeout").Value(&request).Validate(validateDuration),
			huh.NewInput().
				Title("Socket Timeout").
				Description("Longest silence allowed while reading the response").
				Value(&socket).
				Validate(validateDuration),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Gateway.ConnectTimeout = parseDuration(connect, g.ConnectTimeout)
	cfg.Gateway.RequestTimeout = parseDuration(request, g.RequestTimeout)
	cfg.Gateway.SocketTimeout = parseDuration(socket, g.SocketTimeout)
	return nil
}
