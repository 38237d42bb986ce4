package tui

import (
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/andlab/doctas/internal/config"
)

func editSession(cfg *config.Config) error {
	s := cfg.Session
	threshold := strconv.Itoa(s.ErrorThreshold)
	afterResult := s.AfterResultDelay.String()
	transient := s.TransientDelay.String()
	other := s.OtherDelay.String()
	minPartial := strconv.Itoa(s.MinPartialLength)
	floor := strconv.FormatFloat(s.AmplitudeFloor, 'f', -1, 64)
	periods := cfg.Transcript.InsertPeriods

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Error Threshold").
				Description("Consecutive recognition errors before listening stops").
				Value(&threshold).
				Validate(validateInt(1)),
			huh.NewInput().
				Title("Restart After Result").
				Description("Pause before listening again after each utterance").
				Value(&afterResult).
				Validate(validateDuration),
			huh.NewInput().
				Title("Restart After Silence").
				Description("Pause after no-match or speech timeout").
				Value(&transient).
				Validate(validateDuration),
			huh.NewInput().
				Title("Restart After Other Errors").
				Value(&other).
				Validate(validateDuration),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Minimum Partial Length").
				Description("Partials this short or shorter are not shown").
				Value(&minPartial).
				Validate(validateInt(0)),
			huh.NewInput().
				Title("Amplitude Floor (dB)").
				Description("Levels at or below this read as silence").
				Value(&floor).
				Validate(validateFloat),
			huh.NewConfirm().
				Title("End unpunctuated sentences with a period?").
				Description("Joins utterances with \". \" when the transcript has no closing punctuation").
				Value(&periods),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Session.ErrorThreshold = parseInt(threshold, s.ErrorThreshold)
	cfg.Session.AfterResultDelay = parseDuration(afterResult, s.AfterResultDelay)
	cfg.Session.TransientDelay = parseDuration(transient, s.TransientDelay)
	cfg.Session.OtherDelay = parseDuration(other, s.OtherDelay)
	cfg.Session.MinPartialLength = parseInt(minPartial, s.MinPartialLength)
	cfg.Session.AmplitudeFloor = parseFloat(floor, s.AmplitudeFloor)
	cfg.Transcript.InsertPeriods = periods
	return nil
}
