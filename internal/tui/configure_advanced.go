package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/andlab/doctas/internal/config"
)

// AdvancedSection represents a section in the advanced settings menu
type AdvancedSection string

const (
	AdvancedRecording AdvancedSection = "recording"
	AdvancedMetrics   AdvancedSection = "metrics"
	AdvancedRecords   AdvancedSection = "records"
	AdvancedLogging   AdvancedSection = "logging"
	AdvancedBack      AdvancedSection = "back"
)

// editAdvanced handles the advanced settings submenu
func editAdvanced(cfg *config.Config) error {
	for {
		options := []huh.Option[AdvancedSection]{
			huh.NewOption(fmt.Sprintf("Recording (rate=%d, device=%s)", cfg.Recording.SampleRate, deviceName(cfg)), AdvancedRecording),
			huh.NewOption(fmt.Sprintf("Metrics (%s)", onOff(cfg.Metrics.Enabled)), AdvancedMetrics),
			huh.NewOption(fmt.Sprintf("Record Publishing (%s)", onOff(cfg.Records.Enabled)), AdvancedRecords),
			huh.NewOption(fmt.Sprintf("Logging (%s)", cfg.Logging.Level), AdvancedLogging),
			huh.NewOption("Back to Main Menu", AdvancedBack),
		}

		var selected AdvancedSection
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[AdvancedSection]().
					Title("Advanced Settings").
					Description("Configure low-level options").
					Options(options...).
					Value(&selected),
			),
		).WithTheme(getTheme())

		if err := form.Run(); err != nil {
			return err
		}

		switch selected {
		case AdvancedBack:
			return nil
		case AdvancedRecording:
			_ = editRecording(cfg)
		case AdvancedMetrics:
			_ = editMetrics(cfg)
		case AdvancedRecords:
			_ = editRecords(cfg)
		case AdvancedLogging:
			_ = editLogging(cfg)
		}
	}
}

func deviceName(cfg *config.Config) string {
	if cfg.Recording.Device == "" {
		return "default"
	}
	return cfg.Recording.Device
}

func editRecording(cfg *config.Config) error {
	r := cfg.Recording
	sampleRate := strconv.Itoa(r.SampleRate)
	device := r.Device
	bufferSize := strconv.Itoa(r.BufferSize)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Sample Rate (Hz)").
				Description("16000 is optimal for speech recognition.").
				Value(&sampleRate).
				Validate(validateInt(8000)),
			huh.NewInput().
				Title("Device").
				Description("PipeWire target. Leave empty for the default source.").
				Value(&device),
			huh.NewInput().
				Title("Buffer Size (bytes)").
				Description("Audio sent per frame. Larger = less CPU, more latency.").
				Value(&bufferSize).
				Validate(validateInt(1)),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Recording.SampleRate = parseInt(sampleRate, r.SampleRate)
	cfg.Recording.Device = strings.TrimSpace(device)
	cfg.Recording.BufferSize = parseInt(bufferSize, r.BufferSize)
	return nil
}

func editMetrics(cfg *config.Config) error {
	enabled := cfg.Metrics.Enabled
	addr := cfg.Metrics.Addr

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Serve Prometheus metrics?").
				Value(&enabled),
			huh.NewInput().
				Title("Listen Address").
				Placeholder("127.0.0.1:9464").
				Value(&addr),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Metrics.Enabled = enabled
	cfg.Metrics.Addr = strings.TrimSpace(addr)
	return nil
}

func editRecords(cfg *config.Config) error {
	rc := cfg.Records
	enabled := rc.Enabled
	brokers := strings.Join(rc.Brokers, ", ")
	topic := rc.Topic
	source := rc.Source
	sheet := rc.SheetURL

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Publish extracted records to Kafka?").
				Value(&enabled),
			huh.NewInput().
				Title("Brokers").
				Description("Comma separated host:port list").
				Value(&brokers),
			huh.NewInput().
				Title("Topic").
				Value(&topic),
			huh.NewInput().
				Title("Source").
				Description("Identifies this workstation in message headers").
				Value(&source),
			huh.NewInput().
				Title("Records sheet URL").
				Description("Opened by doctas sheet, leave empty if there is none").
				Value(&sheet),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Records.Enabled = enabled
	cfg.Records.Brokers = splitList(brokers)
	cfg.Records.Topic = strings.TrimSpace(topic)
	cfg.Records.Source = strings.TrimSpace(source)
	cfg.Records.SheetURL = strings.TrimSpace(sheet)
	return nil
}

func editLogging(cfg *config.Config) error {
	level := cfg.Logging.Level
	format := cfg.Logging.Format

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Log Level").
				Options(
					huh.NewOption("debug (includes transcript text)", "debug"),
					huh.NewOption("info", "info"),
					huh.NewOption("warn", "warn"),
					huh.NewOption("error", "error"),
				).
				Value(&level),
			huh.NewSelect[string]().
				Title("Log Format").
				Options(
					huh.NewOption("console", "console"),
					huh.NewOption("json", "json"),
				).
				Value(&format),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Logging.Level = level
	cfg.Logging.Format = format
	return nil
}
