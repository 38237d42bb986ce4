package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/andlab/doctas/internal/bus"
	"github.com/andlab/doctas/internal/config"
	"github.com/andlab/doctas/internal/daemon"
	"github.com/andlab/doctas/internal/logging"
	"github.com/andlab/doctas/internal/tui"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "doctas",
	Short: "Continuous clinical dictation with structured vitals extraction",
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		toggleCmd(),
		simpleCmd("send", "Send the transcript for extraction", bus.CmdSend),
		simpleCmd("clear", "Clear the transcript and any result", bus.CmdClear),
		simpleCmd("dismiss", "Dismiss the extracted record or error", bus.CmdDismiss),
		editCmd(),
		statusCmd(),
		watchCmd(),
		simpleCmd("version", "Get protocol version", bus.CmdVersion),
		simpleCmd("stop", "Stop the daemon", bus.CmdQuit),
		sheetCmd(),
		configureCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Init(logging.DefaultConfig())

			manager, err := config.NewManager()
			if errors.Is(err, config.ErrConfigNotFound) {
				if err := config.Save(config.DefaultConfig()); err != nil {
					return fmt.Errorf("failed to write default config: %w", err)
				}
				manager, err = config.NewManager()
			}
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logging.Init(manager.GetConfig().ToLoggingConfig())

			d, err := daemon.New(manager, daemon.Options{})
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}
			return d.Run()
		},
	}
}

// simpleCmd sends one bare command and prints the reply body.
func simpleCmd(use, short string, code byte) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := daemon.NewClient().Do(code, "")
			if err != nil {
				return fmt.Errorf("%s failed: %w", use, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func toggleCmd() *cobra.Command {
	cmd := simpleCmd("toggle", "Start or stop listening", bus.CmdToggle)
	cmd.Aliases = []string{"mic"}
	return cmd
}

func editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit [text...]",
		Short: "Replace the transcript (reads stdin without arguments)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read transcript: %w", err)
				}
				text = strings.TrimRight(string(data), "\n")
			}
			out, err := daemon.NewClient().Do(bus.CmdEdit, text)
			if err != nil {
				return fmt.Errorf("edit failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the dictation state, transcript and last record",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := daemon.NewClient()
			if asJSON {
				out, err := client.Do(bus.CmdStatus, "")
				if err != nil {
					return fmt.Errorf("failed to get status: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			}
			s, err := client.Status()
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatStatus(s))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw status payload")
	return cmd
}

func watchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dictation screen with mic, send and clear controls",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunWatch(daemon.NewClient(), interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "status poll interval")
	return cmd
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration for doctas.
This will guide you through setting up:
- The speech recognition backend
- The extraction service (HTTP endpoint or LLM provider)
- Restart policy and notifications
- Metrics and record publishing`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure()
		},
	}
}

func runConfigure() error {
	cfg, err := config.Load()
	if errors.Is(err, config.ErrConfigNotFound) {
		cfg, err = config.DefaultConfig(), nil
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result, err := tui.Run(cfg)
	if err != nil {
		return fmt.Errorf("configuration wizard error: %w", err)
	}
	if result.Cancelled {
		fmt.Println("Configuration cancelled.")
		return nil
	}

	if err := result.Config.Validate(); err != nil {
		fmt.Printf("Configuration validation failed: %v\n", err)
		return err
	}
	if err := config.Save(result.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("Configuration saved successfully!")
	fmt.Println()
	showNextSteps()
	return nil
}

func showNextSteps() {
	running := false
	if _, err := daemon.NewClient().Do(bus.CmdVersion, ""); err == nil {
		running = true
	}
	serviceActive := exec.Command("systemctl", "--user", "is-active", "--quiet", "doctas.service").Run() == nil

	fmt.Println("Next Steps:")
	switch {
	case running:
		fmt.Println("1. The running daemon reloads the session settings automatically.")
		fmt.Println("   Backend and gateway changes need a restart: doctas stop && doctas serve")
	case serviceActive:
		fmt.Println("1. Restart the service to apply changes: systemctl --user restart doctas.service")
	default:
		fmt.Println("1. Start the daemon: doctas serve")
	}
	fmt.Println("2. Start dictating: doctas toggle, or doctas watch for the live screen")
	fmt.Println()

	configPath, _ := config.GetConfigPath()
	fmt.Printf("Config file location: %s\n", configPath)
}
