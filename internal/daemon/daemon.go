// Package daemon owns the dictation session of one workstation and serves it
// over the control socket.
package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/andlab/doctas/internal/bus"
	"github.com/andlab/doctas/internal/config"
	"github.com/andlab/doctas/internal/deps"
	"github.com/andlab/doctas/internal/gateway"
	"github.com/andlab/doctas/internal/logging"
	"github.com/andlab/doctas/internal/metrics"
	"github.com/andlab/doctas/internal/notify"
	"github.com/andlab/doctas/internal/recognizer"
	"github.com/andlab/doctas/internal/records"
	"github.com/andlab/doctas/internal/session"
	"github.com/andlab/doctas/internal/view"
)

var ErrRecognitionUnavailable = errors.New("speech recognition is not available")

const shutdownTimeout = 5 * time.Second

// Status is the reply to the status command.
type Status struct {
	Session session.Snapshot `json:"session"`
	View    view.View        `json:"view"`
}

// RecordSink receives every record extracted successfully.
type RecordSink interface {
	Enabled() bool
	Publish(ctx context.Context, transcript string, rec gateway.Record) error
	Close() error
}

// Options replaces production collaborators. Zero fields are built from the
// configuration.
type Options struct {
	Engine    recognizer.Engine
	Gateway   gateway.Gateway
	Notifier  notify.Notifier
	Scheduler session.Scheduler
	Records   RecordSink
}

type Daemon struct {
	mu         sync.RWMutex
	dispatcher *notify.Dispatcher
	notifier   notify.Notifier // fixed by Options, nil when config driven

	manager    *config.Manager
	controller *session.Controller
	publisher  RecordSink
	metrics    *metrics.Metrics
	metricsSrv *metrics.Server
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	observers sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New builds the session for the manager's current configuration.
func New(manager *config.Manager, opts Options) (*Daemon, error) {
	cfg := manager.GetConfig()
	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		manager:  manager,
		notifier: opts.Notifier,
		metrics:  metrics.New(),
		logger:   logging.WithComponent("daemon"),
		ctx:      ctx,
		cancel:   cancel,
	}
	d.dispatcher = d.newDispatcher(cfg)

	engine := opts.Engine
	if engine == nil {
		var err error
		if st := deps.CheckPwRecord(); !st.Installed {
			err = errors.New("pw-record not found in PATH")
		} else {
			engine, err = recognizer.New(ctx, cfg.ToBackendConfig())
		}
		if err != nil {
			cancel()
			d.dispatcher.Send(notify.RecognitionFailed, "Speech recognition is not available")
			return nil, fmt.Errorf("%w: %v", ErrRecognitionUnavailable, err)
		}
	}

	gw := opts.Gateway
	if gw == nil {
		var err error
		gw, err = gateway.New(cfg.ToGatewayConfig())
		if err != nil {
			cancel()
			return nil, multierror.Append(fmt.Errorf("create gateway: %w", err), engine.Close()).ErrorOrNil()
		}
	}

	d.publisher = opts.Records
	if d.publisher == nil {
		d.publisher = records.New(cfg.ToRecordsConfig(), d.metrics)
	}
	if cfg.Metrics.Enabled {
		d.metricsSrv = metrics.NewServer(cfg.Metrics.Addr, d.metrics)
	}

	d.controller = session.New(engine, gw, session.Config{
		Recognizer: cfg.ToRecognizerConfig(),
		Policy:     cfg.ToSessionPolicy(),
		Scheduler:  opts.Scheduler,
		Observer:   session.ObserverFunc(d.stateChanged),
		Metrics:    d.metrics,
	})
	manager.OnReload(d.reload)
	return d, nil
}

func (d *Daemon) newDispatcher(cfg *config.Config) *notify.Dispatcher {
	n := d.notifier
	if n == nil {
		typ := cfg.NotificationType()
		if typ == "desktop" && !deps.CheckNotifySend().Installed {
			d.logger.Warn().Msg("notify-send not found, logging notifications instead")
			typ = "log"
		}
		n = notify.New(typ)
	}
	return notify.NewDispatcher(n, cfg.Notifications.Messages.Resolve())
}

// Controller exposes the session for in-process callers.
func (d *Daemon) Controller() *session.Controller {
	return d.controller
}

// Metrics returns the daemon's collectors.
func (d *Daemon) Metrics() *metrics.Metrics {
	return d.metrics
}

// Status reads the session and its projection.
func (d *Daemon) Status() (Status, error) {
	snap, err := d.controller.Snapshot()
	if err != nil {
		return Status{}, err
	}
	return Status{Session: snap, View: view.Project(snap)}, nil
}

// stateChanged runs on the session goroutine and must not block it.
func (d *Daemon) stateChanged(from, to session.State, snap session.Snapshot) {
	d.mu.RLock()
	dispatcher := d.dispatcher
	d.mu.RUnlock()

	d.observers.Add(1)
	go func() {
		defer d.observers.Done()
		dispatcher.StateChanged(from, to, snap)
		if to == session.Success && snap.Record != nil && d.publisher.Enabled() {
			if err := d.publisher.Publish(d.ctx, snap.Transcript, *snap.Record); err != nil {
				d.logger.Warn().Err(err).Msg("record not published")
			}
		}
	}()
}

func (d *Daemon) reload(old, updated *config.Config) {
	logging.Init(updated.ToLoggingConfig())

	if err := d.controller.SetPolicy(updated.ToSessionPolicy()); err != nil {
		d.logger.Warn().Err(err).Msg("failed to apply session policy")
	}
	if err := d.controller.SetRecognizerConfig(updated.ToRecognizerConfig()); err != nil {
		d.logger.Warn().Err(err).Msg("failed to apply recognizer config")
	}
	if old.Recognizer.Backend != updated.Recognizer.Backend ||
		old.Recognizer.WebSocket != updated.Recognizer.WebSocket ||
		old.Recognizer.Google != updated.Recognizer.Google ||
		old.Gateway.Provider != updated.Gateway.Provider ||
		old.Gateway.Endpoint != updated.Gateway.Endpoint {
		d.logger.Warn().Msg("backend or gateway changes take effect after restart")
	}

	dispatcher := d.newDispatcher(updated)
	d.mu.Lock()
	d.dispatcher = dispatcher
	d.mu.Unlock()
	dispatcher.Send(notify.ConfigReloaded, "")
}

// Run serves the control socket until quit, a signal or Close. It tears the
// daemon down before returning.
func (d *Daemon) Run() (err error) {
	defer func() {
		if cerr := d.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	if d.metricsSrv != nil {
		if err := d.metricsSrv.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}
	if err := d.manager.StartWatching(d.ctx); err != nil {
		d.logger.Warn().Err(err).Msg("config hot reload disabled")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			d.logger.Info().Stringer("signal", sig).Msg("shutting down gracefully")
			d.cancel()
		case <-d.ctx.Done():
		}
	}()

	// Close the listener when context is done
	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	d.logger.Info().Msg("daemon started, listening on socket")

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				d.logger.Info().Msg("shutdown requested")
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(c)
	}
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		d.logger.Debug().Err(err).Msg("client read error")
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	cmd, arg, err := bus.DecodeCommand(line)
	if err != nil {
		fmt.Fprintf(c, "ERR %v\n", err)
		return
	}
	fmt.Fprint(c, d.execute(cmd, arg))
}

// execute runs one command and returns the reply line.
func (d *Daemon) execute(cmd byte, arg string) string {
	reply := func(ok string, err error) string {
		if err != nil {
			return fmt.Sprintf("ERR %v\n", err)
		}
		return "OK " + ok + "\n"
	}

	switch cmd {
	case bus.CmdToggle:
		listening, err := d.controller.Toggle()
		if listening {
			return reply("listening", err)
		}
		return reply("stopped", err)
	case bus.CmdSend:
		return reply("processing", d.controller.Submit())
	case bus.CmdClear:
		return reply("cleared", d.controller.Clear())
	case bus.CmdDismiss:
		return reply("dismissed", d.controller.Dismiss())
	case bus.CmdEdit:
		return reply("edited", d.controller.EditTranscript(arg))
	case bus.CmdStatus:
		status, err := d.Status()
		if err != nil {
			return reply("", err)
		}
		payload, err := json.Marshal(status)
		if err != nil {
			return reply("", err)
		}
		return "STATUS " + string(payload) + "\n"
	case bus.CmdVersion:
		return fmt.Sprintf("STATUS proto=%s\n", bus.ProtoVer)
	case bus.CmdQuit:
		d.cancel()
		return "OK quitting\n"
	default:
		d.logger.Warn().Str("command", string(cmd)).Msg("unknown command")
		return fmt.Sprintf("ERR unknown=%q\n", cmd)
	}
}

// Close releases the session, the engine and every sink. It is safe to call
// more than once.
func (d *Daemon) Close() error {
	d.closeOnce.Do(func() {
		var result *multierror.Error

		result = multierror.Append(result, d.controller.Close())
		// in-flight publishes use d.ctx and return once it is done
		d.cancel()
		d.observers.Wait()
		result = multierror.Append(result, d.publisher.Close())

		if d.metricsSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			result = multierror.Append(result, d.metricsSrv.Shutdown(ctx))
			cancel()
		}
		d.manager.Stop()

		d.closeErr = result.ErrorOrNil()
		d.logger.Info().Msg("daemon stopped")
	})
	return d.closeErr
}
