package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ueah/internal/config"
	"github.com/roach88/ueah/internal/dom"
	"github.com/roach88/ueah/internal/navpath"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Location string
	HTML     bool
	Timeout  time.Duration
}

// RenderResult is a rendered page.
type RenderResult struct {
	View          string   `json:"view"`
	Path          string   `json:"path"`
	Location      string   `json:"location"`
	NavID         string   `json:"nav_id"`
	Committed     bool     `json:"committed"`
	Title         string   `json:"title"`
	Meta          dom.Meta `json:"meta"`
	ActiveSection string   `json:"active_section"`
	Focus         string   `json:"focus"`
	PageText      string   `json:"text"`
	Links         []string `json:"links"`
	HTML          string   `json:"html,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Text implements Texter.
func (r RenderResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.Title)
	fmt.Fprintf(&b, "  view:      %s (%s)\n", r.View, r.Path)
	fmt.Fprintf(&b, "  location:  %s\n", r.Location)
	fmt.Fprintf(&b, "  robots:    %s\n", r.Meta.Robots)
	fmt.Fprintf(&b, "  canonical: %s\n", r.Meta.Canonical)
	if r.Error != "" {
		fmt.Fprintf(&b, "  error:     %s\n", r.Error)
	}
	fmt.Fprintf(&b, "\n%s\n", r.PageText)
	if len(r.Links) > 0 {
		b.WriteString("\nLinks:\n")
		for _, l := range r.Links {
			fmt.Fprintf(&b, "  %s\n", l)
		}
	}
	if r.HTML != "" {
		fmt.Fprintf(&b, "\n%s\n", r.HTML)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render [path]",
		Short: "Render a page",
		Long: `Render the view for a path the way the application would on first load,
including base-path link correction, title and metadata.

With --location the full URL is used as is, so hosting detection and the
legacy ?p= redirect apply.

Examples:
  ueah render /resources/8-10/reading/readworks
  ueah render --location "https://someone.github.io/ueah/?p=%2Ftests"
  ueah render /favourites --html --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			path := navpath.Root
			if len(args) == 1 {
				path = args[0]
			}
			return runRender(cmd, opts, path)
		}),
	}

	cmd.Flags().StringVar(&opts.Location, "location", "", "full URL to load instead of a path on the configured origin")
	cmd.Flags().BoolVar(&opts.HTML, "html", false, "include the rendered markup")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "how long to wait for the view")
	return cmd
}

func runRender(cmd *cobra.Command, opts *RenderOptions, path string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	location := opts.Location
	if location == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		location, err = locationFor(cfg, path)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid origin", err)
		}
	}

	a, _, err := opts.openApp(ctx, cmd, location)
	if err != nil {
		return err
	}

	out := a.Start(ctx)
	snap := a.Page.Snapshot()
	res := RenderResult{
		View:          string(out.View),
		Path:          out.Path,
		Location:      a.History.Location().String(),
		NavID:         out.NavID,
		Committed:     out.Committed,
		Title:         snap.Title,
		Meta:          snap.Meta,
		ActiveSection: snap.ActiveSection,
		Focus:         snap.Focus,
		PageText:      dom.Text(snap.Content),
		Links:         dom.Hrefs(snap.Content),
	}
	if opts.HTML {
		res.HTML = snap.Content
	}
	if out.Err != nil {
		res.Error = out.Err.Error()
	}

	f := opts.formatter(cmd)
	f.VerboseLog("rendered %s in %d page writes", out.Path, snap.Writes)
	if err := f.Success(res); err != nil {
		return err
	}
	if !out.Committed {
		return NewExitError(ExitFailure, fmt.Sprintf("navigation to %s did not complete", path))
	}
	return nil
}

// locationFor builds the URL of path on the configured origin, under the
// base path when the hosting rule applies to that origin.
func locationFor(cfg config.Config, path string) (string, error) {
	loc, err := navpath.ParseLocation(cfg.Hosting.Origin)
	if err != nil {
		return "", err
	}
	loc.Path = navpath.HrefFor(navpath.Root, cfg.Hosting.BasePath)
	base := navpath.DetectBasePath(loc, cfg.HostingRule())

	loc.Path = navpath.HrefFor(path, base)
	loc.RawQuery = ""
	loc.Fragment = ""
	return loc.String(), nil
}
