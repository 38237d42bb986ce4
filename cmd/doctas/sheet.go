package main

import (
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/andlab/doctas/internal/config"
	"github.com/andlab/doctas/internal/deps"
)

var errNoSheet = errors.New("records.sheet_url is not set (run doctas configure)")

func sheetCmd() *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Open the sheet where extracted records are collected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			opener := xdgOpen
			if printOnly {
				opener = nil
			}
			return openSheet(cmd.OutOrStdout(), cfg, opener)
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "only print the URL")
	return cmd
}

// openSheet prints the sheet URL and hands it to open when one is given.
func openSheet(w io.Writer, cfg *config.Config, open func(string) error) error {
	url := cfg.Records.SheetURL
	if url == "" {
		return errNoSheet
	}
	fmt.Fprintln(w, url)
	if open == nil {
		return nil
	}
	if err := open(url); err != nil {
		return fmt.Errorf("failed to open sheet: %w", err)
	}
	return nil
}

func xdgOpen(url string) error {
	st := deps.CheckXdgOpen()
	if !st.Installed {
		return errors.New("xdg-open not found in PATH")
	}
	return exec.Command(st.Path, url).Start()
}
