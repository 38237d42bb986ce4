package recording

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// fakePwRecord puts a pw-record script first on PATH.
func fakePwRecord(t *testing.T, script string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pw-record")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", cfg.SampleRate)
	}
	if cfg.Channels != 1 {
		t.Errorf("Channels = %d, want 1", cfg.Channels)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"negative channels", func(c *Config) { c.Channels = -1 }},
		{"zero buffer", func(c *Config) { c.BufferSize = 0 }},
		{"zero channel buffer", func(c *Config) { c.ChannelBufferSize = 0 }},
		{"empty format", func(c *Config) { c.Format = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPwRecordArgs(t *testing.T) {
	cfg := DefaultConfig()
	args := cfg.pwRecordArgs()
	if args[len(args)-1] != "-" {
		t.Errorf("last arg should be stdout marker, got %v", args)
	}
	if slices.Contains(args, "--target") {
		t.Errorf("no --target expected without device, got %v", args)
	}

	cfg.Device = "alsa_input.usb"
	args = cfg.pwRecordArgs()
	i := slices.Index(args, "--target")
	if i < 0 || args[i+1] != "alsa_input.usb" {
		t.Errorf("expected --target alsa_input.usb, got %v", args)
	}
}

func TestRecorderStartInvalidConfig(t *testing.T) {
	r := NewRecorder(Config{})
	if _, _, err := r.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid config")
	}
	if r.IsRecording() {
		t.Error("recorder should not be recording after failed start")
	}
}

func TestRecorderStopIdle(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	if err := r.Stop(); err != nil {
		t.Errorf("Stop on idle recorder: %v", err)
	}
}

func TestRecorderRestartAfterFramesClose(t *testing.T) {
	fakePwRecord(t, `printf 'abcd'`)
	r := NewRecorder(DefaultConfig())

	for i := 0; i < 3; i++ {
		frames, _, err := r.Start(context.Background())
		if err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		var got []byte
		for f := range frames {
			got = append(got, f.Data...)
		}
		if string(got) != "abcd" {
			t.Errorf("start %d: frames = %q", i, got)
		}
		if r.IsRecording() {
			t.Fatalf("start %d: still recording after frames closed", i)
		}
	}
	r.Wait()
}

func TestRecorderRejectsConcurrentStart(t *testing.T) {
	fakePwRecord(t, `exec sleep 5`)
	r := NewRecorder(DefaultConfig())

	frames, _, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if _, _, err := r.Start(context.Background()); err == nil {
		t.Error("second Start should fail while recording")
	}
	r.Stop()
	for range frames {
	}
	r.Wait()
	if r.IsRecording() {
		t.Error("recorder should be idle after Stop")
	}
}
