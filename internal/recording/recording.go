// Package recording captures raw microphone PCM through pw-record. Frames are
// forwarded untouched to a recognition backend.
package recording

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andlab/doctas/internal/logging"
)

type Frame struct {
	Data      []byte
	Timestamp time.Time
}

type Config struct {
	SampleRate        int
	Channels          int
	Format            string
	BufferSize        int
	Device            string
	ChannelBufferSize int
}

func DefaultConfig() Config {
	return Config{
		SampleRate:        16000,
		Channels:          1,
		Format:            "s16",
		BufferSize:        3200, // 100ms of 16kHz mono s16
		ChannelBufferSize: 50,
	}
}

// Source produces audio frames until stopped. Both channels are closed when
// capture ends.
type Source interface {
	Start(ctx context.Context) (<-chan Frame, <-chan error, error)
	Stop() error
}

// Recorder is a Source backed by a pw-record child process.
type Recorder struct {
	config    Config
	recording atomic.Bool

	mu     sync.Mutex // guards cmd and cancel
	cmd    *exec.Cmd
	cancel context.CancelFunc

	wg sync.WaitGroup
}

func NewRecorder(config Config) *Recorder {
	return &Recorder{config: config}
}

func (r *Recorder) IsRecording() bool {
	return r.recording.Load()
}

func (r *Recorder) Start(ctx context.Context) (<-chan Frame, <-chan error, error) {
	if !r.recording.CompareAndSwap(false, true) {
		return nil, nil, fmt.Errorf("already recording")
	}
	if err := r.config.Validate(); err != nil {
		r.recording.Store(false)
		return nil, nil, err
	}
	if _, err := exec.LookPath("pw-record"); err != nil {
		r.recording.Store(false)
		return nil, nil, fmt.Errorf("pw-record not found: %w (install pipewire-tools)", err)
	}

	captureCtx, cancel := context.WithCancel(ctx)
	frameCh := make(chan Frame, r.config.ChannelBufferSize)
	errCh := make(chan error, 1)

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go r.captureLoop(captureCtx, frameCh, errCh)

	return frameCh, errCh, nil
}

// Stop cancels capture. It does not wait for the child process; use Wait.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) captureLoop(ctx context.Context, frameCh chan<- Frame, errCh chan<- error) {
	logger := logging.WithComponent("recording")
	var started *exec.Cmd
	// The recorder is free again before consumers see the channels close.
	defer func() {
		if started != nil {
			_ = started.Wait()
		}
		r.mu.Lock()
		if r.cmd == started {
			r.cmd = nil
		}
		r.mu.Unlock()

		r.recording.Store(false)
		close(frameCh)
		close(errCh)
		r.wg.Done()
	}()

	cmd := exec.CommandContext(ctx, "pw-record", r.config.pwRecordArgs()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		emitErr(errCh, fmt.Errorf("create stdout pipe: %w", err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		emitErr(errCh, fmt.Errorf("create stderr pipe: %w", err))
		return
	}
	if err := cmd.Start(); err != nil {
		emitErr(errCh, fmt.Errorf("start pw-record: %w", err))
		return
	}

	started = cmd
	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Debug().Str("stderr", scanner.Text()).Msg("pw-record")
		}
	}()

	buffer := make([]byte, r.config.BufferSize)
	dropped := 0
	lastDropLog := time.Now()

	for {
		n, readErr := stdout.Read(buffer)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buffer[:n])

			select {
			case frameCh <- Frame{Data: data, Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			default:
				dropped++
				if time.Since(lastDropLog) > time.Second {
					logger.Warn().Int("dropped", dropped).Msg("dropping frames due to backpressure")
					lastDropLog = time.Now()
					dropped = 0
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) || ctx.Err() != nil {
				return
			}
			emitErr(errCh, fmt.Errorf("read audio: %w", readErr))
			return
		}
	}
}

func emitErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

func (c Config) pwRecordArgs() []string {
	args := []string{
		"--format", c.Format,
		"--rate", strconv.Itoa(c.SampleRate),
		"--channels", strconv.Itoa(c.Channels),
	}
	if c.Device != "" {
		args = append(args, "--target", c.Device)
	}
	return append(args, "-")
}

func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("invalid Channels: %d", c.Channels)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("invalid BufferSize: %d", c.BufferSize)
	}
	if c.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid ChannelBufferSize: %d", c.ChannelBufferSize)
	}
	if c.Format == "" {
		return fmt.Errorf("invalid Format: empty")
	}
	return nil
}
