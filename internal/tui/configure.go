package tui

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/andlab/doctas/internal/config"
)

// ConfigureResult holds the configuration result from the TUI
type ConfigureResult struct {
	Config    *config.Config
	Cancelled bool
}

// ConfigSection represents a configuration section
type ConfigSection string

const (
	SectionRecognizer    ConfigSection = "recognizer"
	SectionGateway       ConfigSection = "gateway"
	SectionSession       ConfigSection = "session"
	SectionNotifications ConfigSection = "notifications"
	SectionAdvanced      ConfigSection = "advanced"
	SectionSaveExit      ConfigSection = "save_exit"
	SectionDiscardExit   ConfigSection = "discard_exit"
)

// Run starts the configuration menu on a copy of existing. A fresh install
// walks through the recognizer and gateway first.
func Run(existing *config.Config) (*ConfigureResult, error) {
	if existing == nil {
		existing = config.DefaultConfig()
	}
	cfg := *existing
	cfg.Providers = maps.Clone(existing.Providers)
	cfg.Gateway.Headers = maps.Clone(existing.Gateway.Headers)
	cfg.Gateway.Keywords = slices.Clone(existing.Gateway.Keywords)
	cfg.Records.Brokers = slices.Clone(existing.Records.Brokers)

	if !hasUserChanges(&cfg) {
		clearScreen()
		fmt.Println(Logo())
		fmt.Println()
		if err := editRecognizer(&cfg); err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}
		if err := editGateway(&cfg); err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}
	}

	for {
		clearScreen()
		fmt.Println(Logo())
		fmt.Println()

		section, err := selectSection(&cfg)
		if err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}

		switch section {
		case SectionSaveExit:
			if err := cfg.Validate(); err != nil {
				fmt.Println(StyleError.Render("Invalid configuration: " + err.Error()))
				if !confirm("Keep editing?") {
					return &ConfigureResult{Cancelled: true}, nil
				}
				continue
			}
			confirmed, err := showSummary(&cfg)
			if err != nil {
				return &ConfigureResult{Cancelled: true}, nil
			}
			if confirmed {
				return &ConfigureResult{Config: &cfg}, nil
			}

		case SectionDiscardExit:
			return &ConfigureResult{Cancelled: true}, nil

		case SectionRecognizer:
			_ = editRecognizer(&cfg)
		case SectionGateway:
			_ = editGateway(&cfg)
		case SectionSession:
			_ = editSession(&cfg)
		case SectionNotifications:
			_ = editNotifications(&cfg)
		case SectionAdvanced:
			_ = editAdvanced(&cfg)
		}
	}
}

// hasUserChanges detects if config differs from a fresh install
func hasUserChanges(cfg *config.Config) bool {
	def := config.DefaultConfig()
	if len(cfg.Providers) > 0 {
		return true
	}
	return cfg.Recognizer.Backend != def.Recognizer.Backend ||
		cfg.Recognizer.WebSocket.URL != def.Recognizer.WebSocket.URL ||
		cfg.Gateway.Provider != def.Gateway.Provider ||
		cfg.Gateway.Endpoint != def.Gateway.Endpoint
}

func selectSection(cfg *config.Config) (ConfigSection, error) {
	options := []huh.Option[ConfigSection]{
		huh.NewOption(formatRecognizerLabel(cfg), SectionRecognizer),
		huh.NewOption(formatGatewayLabel(cfg), SectionGateway),
		huh.NewOption(formatSessionLabel(cfg), SectionSession),
		huh.NewOption(formatNotificationsLabel(cfg), SectionNotifications),
		huh.NewOption("Advanced Settings", SectionAdvanced),
		huh.NewOption("Save & Exit", SectionSaveExit),
		huh.NewOption("Discard & Exit", SectionDiscardExit),
	}

	var selected ConfigSection
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[ConfigSection]().
				Title("Configuration Menu").
				Description("↑/↓ navigate • enter select • esc cancel").
				Options(options...).
				Value(&selected),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return "", err
	}
	return selected, nil
}

func confirm(title string) bool {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().Title(title).Value(&ok),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return false
	}
	return ok
}

func showSummary(cfg *config.Config) (bool, error) {
	fmt.Println()
	fmt.Println(StyleHeader.Render("Configuration Summary"))
	fmt.Println()
	for _, line := range summaryLines(cfg) {
		fmt.Printf("  %s %s\n", StyleLabel.Render(line[0]+":"), line[1])
	}
	fmt.Println()

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this configuration?").
				Affirmative("Save").
				Negative("Cancel").
				Value(&confirmed),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

func clearScreen() {
	output := termenv.NewOutput(os.Stdout)
	output.ClearScreen()
}

func getTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Focused.Base = lipgloss.NewStyle().BorderForeground(ColorPrimary)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(ColorSecondary)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(ColorText)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Blurred.Description = lipgloss.NewStyle().Foreground(ColorSubtle)

	return t
}
