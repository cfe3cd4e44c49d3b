package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ueah/internal/prefs"
)

// FavouriteList is the output of fav list.
type FavouriteList []prefs.Favourite

// Text implements Texter.
func (l FavouriteList) Text() string {
	if len(l) == 0 {
		return "No favourites saved."
	}
	var b strings.Builder
	for i, f := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		title := f.Title
		if title == "" {
			title = f.Slug
		}
		fmt.Fprintf(&b, "%-28s %s", f.Key, title)
		if f.Link != "" {
			fmt.Fprintf(&b, "  <%s>", f.Link)
		}
	}
	return b.String()
}

// FavouriteChange reports a toggle, remove or clear.
type FavouriteChange struct {
	Key   string `json:"key,omitempty"`
	Saved bool   `json:"saved"`
	Count int    `json:"count"`
}

// Text implements Texter.
func (c FavouriteChange) Text() string {
	switch {
	case c.Key == "":
		return fmt.Sprintf("Favourites cleared (%d saved)", c.Count)
	case c.Saved:
		return fmt.Sprintf("Saved %s (%d saved)", c.Key, c.Count)
	default:
		return fmt.Sprintf("Removed %s (%d saved)", c.Key, c.Count)
	}
}

// NewFavouritesCommand creates the fav command group.
func NewFavouritesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fav",
		Aliases: []string{"favourites"},
		Short:   "List and edit favourites",
	}
	cmd.AddCommand(newFavListCommand(rootOpts))
	cmd.AddCommand(newFavToggleCommand(rootOpts))
	cmd.AddCommand(newFavRemoveCommand(rootOpts))
	cmd.AddCommand(newFavClearCommand(rootOpts))
	return cmd
}

func newFavListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List favourites, most recent first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := rootOpts.openApp(ctx, cmd, "")
			if err != nil {
				return err
			}
			items, err := a.Favourites.List(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read favourites", err)
			}
			return rootOpts.formatter(cmd).Success(FavouriteList(items))
		}),
	}
}

func newFavToggleCommand(rootOpts *RootOptions) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "toggle <age> <skill> <slug>",
		Short: "Save or unsave a catalogue resource",
		Long: `Save a resource as a favourite, or remove it when it is already saved.

The resource must exist in the catalogue; its title and link are taken from
there unless --title is given.

Example:
  ueah fav toggle 8-10 reading readworks`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := rootOpts.openApp(ctx, cmd, "")
			if err != nil {
				return err
			}

			age, skill, slug := args[0], args[1], args[2]
			r, ok, err := a.Catalog.Resource(ctx, age, skill, slug)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load catalogue", err)
			}
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("no resource %s/%s/%s in the catalogue", age, skill, slug))
			}
			item := prefs.Favourite{
				Age:         age,
				Skill:       skill,
				Slug:        slug,
				Title:       r.Title,
				Description: r.Description,
				Link:        r.Link,
			}
			if title != "" {
				item.Title = title
			}

			saved, err := a.Favourites.Toggle(ctx, item)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to save favourite", err)
			}
			return rootOpts.formatter(cmd).Success(FavouriteChange{
				Key:   item.Normalized().Key,
				Saved: saved,
				Count: a.FavouritesBadge(),
			})
		}),
	}

	cmd.Flags().StringVar(&title, "title", "", "title to store instead of the catalogue title")
	return cmd
}

func newFavRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <key>",
		Short:         "Remove a favourite by key (age|skill|slug)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := rootOpts.openApp(ctx, cmd, "")
			if err != nil {
				return err
			}
			if err := a.Favourites.Remove(ctx, args[0]); err != nil {
				return WrapExitError(ExitCommandError, "failed to remove favourite", err)
			}
			return rootOpts.formatter(cmd).Success(FavouriteChange{Key: args[0], Count: a.FavouritesBadge()})
		}),
	}
}

func newFavClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Remove every favourite",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := rootOpts.openApp(ctx, cmd, "")
			if err != nil {
				return err
			}
			if err := a.Favourites.Clear(ctx); err != nil {
				return WrapExitError(ExitCommandError, "failed to clear favourites", err)
			}
			return rootOpts.formatter(cmd).Success(FavouriteChange{Count: a.FavouritesBadge()})
		}),
	}
}
