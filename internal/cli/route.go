package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ueah/internal/navpath"
	"github.com/roach88/ueah/internal/route"
)

// RouteResult describes how one path resolves.
type RouteResult struct {
	Input   string       `json:"input"`
	Path    string       `json:"path"`
	Href    string       `json:"href"`
	View    string       `json:"view"`
	Section string       `json:"section"`
	Params  route.Params `json:"params"`
}

// RouteResults is the output of the route command.
type RouteResults []RouteResult

// Text implements Texter.
func (rs RouteResults) Text() string {
	var b strings.Builder
	for i, r := range rs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-32s %-16s %s", r.Path, r.View, r.Href)
		var params []string
		if r.Params.Age != "" {
			params = append(params, "age="+r.Params.Age)
		}
		if r.Params.Skill != "" {
			params = append(params, "skill="+r.Params.Skill)
		}
		if r.Params.Slug != "" {
			params = append(params, "slug="+r.Params.Slug)
		}
		if len(params) > 0 {
			b.WriteString("  " + strings.Join(params, " "))
		}
	}
	return b.String()
}

// NewRouteCommand creates the route command.
func NewRouteCommand(rootOpts *RootOptions) *cobra.Command {
	var basePath string

	cmd := &cobra.Command{
		Use:   "route <path>...",
		Short: "Resolve paths to views",
		Long: `Resolve each path to the view that would render it, without rendering.

Paths are normalized first: duplicate and trailing slashes are removed and
query strings and fragments are ignored. Full URLs are accepted.

Examples:
  ueah route /resources/8-10/reading/
  ueah route "https://someone.github.io/ueah/tests?x=1" --base /ueah`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if basePath == "" {
				basePath = cfg.Hosting.BasePath
			}
			base := navpath.Normalize(basePath)
			if base == navpath.Root {
				base = ""
			}

			vocab := cfg.Vocabulary()
			out := make(RouteResults, 0, len(args))
			for _, in := range args {
				p := navpath.Normalize(in)
				if base != "" {
					if stripped, ok := navpath.StripBase(p, base); ok {
						p = stripped
					}
				}
				m := route.Resolve(p, vocab)
				out = append(out, RouteResult{
					Input:   in,
					Path:    m.Path,
					Href:    navpath.HrefFor(m.Path, base),
					View:    string(m.View),
					Section: m.Section(),
					Params:  m.Params,
				})
			}
			return rootOpts.formatter(cmd).Success(out)
		}),
	}

	cmd.Flags().StringVar(&basePath, "base", "", "base path to strip and prefix (defaults to hosting.base_path)")
	return cmd
}
