package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ueah/internal/prefs"
	"github.com/roach88/ueah/internal/syncdoc"
)

// SyncExportResult reports a written sync file.
type SyncExportResult struct {
	File       string `json:"file"`
	Favourites int    `json:"favourites"`
	Fields     int    `json:"profile_fields"`
	Message    string `json:"message"`
}

// Text implements Texter.
func (r SyncExportResult) Text() string { return r.Message }

// SyncImportResult reports an import with its localized status line.
type SyncImportResult struct {
	syncdoc.Result
	Status string `json:"status"`
}

// Text implements Texter.
func (r SyncImportResult) Text() string {
	if r.OK || r.Message == "" {
		return r.Status
	}
	return r.Status + "\n  " + r.Message
}

// NewSyncCommand creates the sync command group.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Export and import sync files",
		Long: `Move the profile and favourites between devices with a single JSON file.

Exit codes for import:
  0 - Imported
  1 - The file was rejected or a section could not be saved
  2 - Command error (unreadable file, storage unavailable)`,
	}
	cmd.AddCommand(newSyncExportCommand(rootOpts))
	cmd.AddCommand(newSyncImportCommand(rootOpts))
	return cmd
}

func newSyncExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a sync file",
		Long: `Write the profile and favourites stored on this device to a sync file.

Without --output the file is named ueah-sync-YYYYMMDD-HHMM.json in the
current directory. Use --output - to write to stdout.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cfg, err := rootOpts.openApp(ctx, cmd, "")
			if err != nil {
				return err
			}

			doc, err := a.Sync.Export(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read local data", err)
			}
			data, err := doc.Encode()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to encode sync file", err)
			}

			if output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if output == "" {
				output = syncdoc.Filename(time.Now())
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return WrapExitError(ExitCommandError, "failed to write sync file", err)
			}

			res := SyncExportResult{
				File:    output,
				Fields:  len(doc.Profile),
				Message: syncdoc.ExportedMessage(filepath.Base(output), cfg.Locale),
			}
			if doc.Favourites != nil {
				res.Favourites = len(doc.Favourites.Items)
			}
			return rootOpts.formatter(cmd).Success(res)
		}),
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write, or - for stdout")
	return cmd
}

func newSyncImportCommand(rootOpts *RootOptions) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Read a sync file",
		Long: `Import a sync file into the stores on this device.

In merge mode (the default) profile fields and favourites from the file are
added to what is already stored. In replace mode each section present in the
file replaces the stored one. Use - to read from stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			m, err := prefs.ParseMode(mode)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --mode", err)
			}
			data, err := readInput(cmd, args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read sync file", err)
			}

			ctx := cmd.Context()
			a, cfg, err := rootOpts.openApp(ctx, cmd, "")
			if err != nil {
				return err
			}

			r := a.Sync.ImportText(ctx, data, syncdoc.Options{Mode: m})
			res := SyncImportResult{Result: r, Status: syncdoc.StatusMessage(r.Reason, cfg.Locale)}

			f := rootOpts.formatter(cmd)
			f.VerboseLog("import mode %s: profile=%t favourites=%t", m, r.Profile.Present, r.Favourites.Present)
			if !r.OK {
				if err := f.Error(string(r.Reason), res.Status, r); err != nil {
					return err
				}
				return NewExitError(ExitFailure, fmt.Sprintf("import rejected: %s", r.Reason))
			}
			return f.Success(res)
		}),
	}

	cmd.Flags().StringVar(&mode, "mode", string(prefs.ModeMerge), "merge or replace")
	return cmd
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}
