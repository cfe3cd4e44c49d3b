package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ueah/internal/canonical"
	"github.com/roach88/ueah/internal/prefs"
)

// ProfileResult is the whole stored profile.
type ProfileResult struct {
	Profile prefs.Profile `json:"profile"`
}

// Text implements Texter.
func (r ProfileResult) Text() string {
	if len(r.Profile) == 0 {
		return "Profile is empty."
	}
	var b strings.Builder
	for i, k := range canonical.SortedKeys(r.Profile) {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-16s %s", k, formatValue(r.Profile[k]))
	}
	return b.String()
}

// ProfileField is one profile field.
type ProfileField struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Present bool   `json:"present"`
}

// Text implements Texter.
func (r ProfileField) Text() string {
	if !r.Present {
		return fmt.Sprintf("%s is not set", r.Field)
	}
	return formatValue(r.Value)
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := canonical.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// NewProfileCommand creates the profile command group.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show and edit the stored profile",
	}
	cmd.AddCommand(newProfileShowCommand(rootOpts))
	cmd.AddCommand(newProfileGetCommand(rootOpts))
	cmd.AddCommand(newProfileSetCommand(rootOpts))
	cmd.AddCommand(newProfileRemoveCommand(rootOpts))
	cmd.AddCommand(newProfileClearCommand(rootOpts))
	return cmd
}

func newProfileShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Print every profile field",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := rootOpts.openApp(ctx, cmd, "")
			if err != nil {
				return err
			}
			p, err := a.Stores.Profile.All(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read profile", err)
			}
			if p == nil {
				p = prefs.Profile{}
			}
			return rootOpts.formatter(cmd).Success(ProfileResult{Profile: p})
		}),
	}
}

func newProfileGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <field>",
		Short:         "Print one profile field",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := rootOpts.openApp(ctx, cmd, "")
			if err != nil {
				return err
			}
			v, ok, err := a.Stores.Profile.Get(ctx, args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read profile", err)
			}
			if err := rootOpts.formatter(cmd).Success(ProfileField{Field: args[0], Value: v, Present: ok}); err != nil {
				return err
			}
			if !ok {
				return NewExitError(ExitFailure, fmt.Sprintf("%s is not set", args[0]))
			}
			return nil
		}),
	}
}

func newProfileSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <field> <value>",
		Short: "Set one profile field",
		Long: `Set one profile field. The value is read as JSON when it parses as JSON
and stored as a plain string otherwise.

Examples:
  ueah profile set name Ada
  ueah profile set targetScore 90
  ueah profile set resultsByAge '{"8-10":{"score":7}}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := rootOpts.openApp(ctx, cmd, "")
			if err != nil {
				return err
			}
			field, value := args[0], parseValue(args[1])
			if err := a.Stores.Profile.Set(ctx, field, value); err != nil {
				return WrapExitError(ExitCommandError, "failed to save profile", err)
			}
			return rootOpts.formatter(cmd).Success(ProfileField{Field: field, Value: value, Present: true})
		}),
	}
}

// parseValue reads s as a JSON value, or keeps it as a string.
func parseValue(s string) any {
	v, err := canonical.Decode([]byte(s))
	if err != nil {
		return s
	}
	return v
}

func newProfileRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <field>",
		Short:         "Remove one profile field",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := rootOpts.openApp(ctx, cmd, "")
			if err != nil {
				return err
			}
			if err := a.Stores.Profile.Remove(ctx, args[0]); err != nil {
				return WrapExitError(ExitCommandError, "failed to save profile", err)
			}
			return rootOpts.formatter(cmd).Success(ProfileField{Field: args[0]})
		}),
	}
}

func newProfileClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Remove every profile field",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := rootOpts.openApp(ctx, cmd, "")
			if err != nil {
				return err
			}
			if err := a.Stores.Profile.Clear(ctx); err != nil {
				return WrapExitError(ExitCommandError, "failed to save profile", err)
			}
			return rootOpts.formatter(cmd).Success(ProfileResult{Profile: prefs.Profile{}})
		}),
	}
}
