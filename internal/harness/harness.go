package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/ueah/internal/app"
	"github.com/roach88/ueah/internal/canonical"
	"github.com/roach88/ueah/internal/config"
	"github.com/roach88/ueah/internal/intercept"
	"github.com/roach88/ueah/internal/kv"
	"github.com/roach88/ueah/internal/navpath"
	"github.com/roach88/ueah/internal/prefs"
	"github.com/roach88/ueah/internal/render"
	"github.com/roach88/ueah/internal/store"
	"github.com/roach88/ueah/internal/syncdoc"
	"github.com/roach88/ueah/internal/testutil"
)

// DefaultLocation is where a scenario starts when it names no location.
const DefaultLocation = "http://localhost/"

// stepTimeout bounds a single step. A navigation that does not settle in
// time fails the run instead of hanging it.
const stepTimeout = 10 * time.Second

// Harness executes one scenario against one application instance.
type Harness struct {
	app    *app.App
	seq    int64
	logger *slog.Logger
}

// Run executes a scenario in a fresh application with in-memory storage
// and returns the result. An error means the scenario could not be run at
// all; failed expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	a, err := newApp(ctx, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble application: %w", err)
	}
	defer a.Close()

	h := &Harness{
		app:    a,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	result := NewResult()

	startCtx, cancel := context.WithTimeout(ctx, stepTimeout)
	out := a.Start(startCtx)
	cancel()
	h.seq++
	result.AddTrace(h.seq, "start", nil, h.navigationResult(out))

	for i, step := range scenario.Setup {
		if _, err := h.execute(ctx, step.Action, step.Args); err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Action, err)
		}
	}

	for i, step := range scenario.Flow {
		res, err := h.execute(ctx, step.Invoke, step.Args)
		if err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Invoke, err)
		}
		h.seq++
		result.AddTrace(h.seq, step.Invoke, step.Args, res)

		for _, msg := range matchExpect(res, step.Expect) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Invoke, msg))
		}
	}

	state, err := h.snapshotState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}
	result.State = state

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newApp(ctx context.Context, scenario *Scenario) (*app.App, error) {
	location := scenario.Location
	if location == "" {
		location = DefaultLocation
	}
	loc, err := navpath.ParseLocation(location)
	if err != nil {
		return nil, err
	}

	prefix := scenario.NavPrefix
	if prefix == "" {
		prefix = "nav"
	}

	cfg := config.Default()
	cfg.Hosting.DomainSuffix = scenario.Hosting.DomainSuffix
	cfg.Hosting.BasePath = scenario.Hosting.BasePath
	cfg.Storage.Tier = string(prefs.TierFallback)

	opts := app.Options{
		Config:   cfg,
		Location: loc,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      testutil.NewStepClock(time.Time{}, 0).Now,
		NavIDs:   render.NewSequentialGenerator(prefix),
		Storage:  kv.NewMemoryStorage(),
	}
	if scenario.Tier == string(prefs.TierEnhanced) {
		opts.Config.Storage.Tier = string(prefs.TierEnhanced)
		opts.Opener = func(context.Context) (*store.Store, error) {
			return store.Open(store.MemoryPath)
		}
	}
	return app.New(ctx, opts)
}

// execute performs one action and returns its traced result.
func (h *Harness) execute(ctx context.Context, action string, args map[string]any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()

	a := h.app
	before := a.Orchestrator.Latest()
	res := map[string]any{}

	switch action {
	case ActionNavigate:
		a.Go(stringArg(args, "path"))

	case ActionClick:
		ev := clickEvent(args)
		res["handled"] = a.Click(ev)
		res["favourites"] = a.FavouritesBadge()

	case ActionBack:
		res["moved"] = a.Back()

	case ActionForward:
		res["moved"] = a.Forward()

	case ActionRefresh:
		a.Refresh()

	case ActionImport:
		var payload []byte
		if text, ok := args["text"]; ok {
			payload = []byte(fmt.Sprint(text))
		} else {
			data, err := canonical.Marshal(args["document"])
			if err != nil {
				return nil, fmt.Errorf("encode document: %w", err)
			}
			payload = data
		}
		mode, err := prefs.ParseMode(stringArg(args, "mode"))
		if err != nil {
			return nil, err
		}
		r := a.Sync.ImportText(ctx, payload, syncdoc.Options{Mode: mode})
		res["ok"] = r.OK
		if r.Reason != syncdoc.ReasonNone {
			res["reason"] = string(r.Reason)
		}
		res["favourites"] = a.FavouritesBadge()

	case ActionExport:
		doc, err := a.Sync.Export(ctx)
		if err != nil {
			return nil, err
		}
		res["app"] = doc.App
		res["type"] = doc.Type
		res["schema_version"] = doc.SchemaVersion
		res["profile_fields"] = len(doc.Profile)
		n := 0
		if doc.Favourites != nil {
			n = len(doc.Favourites.Items)
		}
		res["favourites"] = n

	case ActionProfileSet:
		if err := a.Stores.Profile.Set(ctx, stringArg(args, "field"), args["value"]); err != nil {
			return nil, err
		}

	case ActionProfileRemove:
		if err := a.Stores.Profile.Remove(ctx, stringArg(args, "field")); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}

	if a.Orchestrator.Latest() != before {
		for k, v := range h.navigationResult(a.Wait(ctx)) {
			res[k] = v
		}
	}
	h.logger.Debug("step executed", "action", action, "result", res)
	return res, nil
}

func (h *Harness) navigationResult(out render.Outcome) map[string]any {
	res := map[string]any{
		"view":      string(out.View),
		"path":      out.Path,
		"nav_id":    out.NavID,
		"committed": out.Committed,
		"title":     h.app.Page.Snapshot().Title,
		"location":  h.app.History.Location().Path,
	}
	if out.Err != nil {
		res["error"] = out.Err.Error()
	}
	return res
}

func clickEvent(args map[string]any) intercept.ClickEvent {
	ev := intercept.ClickEvent{
		Target: element(args),
		Ctrl:   boolArg(args, "ctrl"),
		Meta:   boolArg(args, "meta"),
		Shift:  boolArg(args, "shift"),
		Alt:    boolArg(args, "alt"),
	}
	if b, ok := args["button"].(int); ok {
		ev.Button = b
	}
	return ev
}

func element(desc map[string]any) *intercept.Element {
	el := &intercept.Element{Tag: stringArg(desc, "tag"), Attrs: map[string]string{}}
	if el.Tag == "" {
		el.Tag = "a"
	}
	if attrs, ok := desc["attrs"].(map[string]any); ok {
		for k, v := range attrs {
			el.Attrs[k] = fmt.Sprint(v)
		}
	}
	if parent, ok := desc["parent"].(map[string]any); ok {
		el.Parent = element(parent)
	}
	return el
}

func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

// snapshotState collects the final state tables.
func (h *Harness) snapshotState(ctx context.Context) (map[string]any, error) {
	a := h.app
	snap := a.Page.Snapshot()
	loc := a.History.Location()

	items, err := a.Favourites.List(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]any, len(items))
	keys := make([]any, len(items))
	for i, f := range items {
		rows[i] = map[string]any{
			"key":   f.Key,
			"age":   f.Age,
			"skill": f.Skill,
			"slug":  f.Slug,
			"title": f.Title,
			"link":  f.Link,
		}
		keys[i] = f.Key
	}

	profile, err := a.Stores.Profile.All(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"page": map[string]any{
			"view":           string(a.Wait(ctx).View),
			"title":          snap.Title,
			"active_section": snap.ActiveSection,
			"focus":          snap.Focus,
			"description":    snap.Meta.Description,
			"canonical":      snap.Meta.Canonical,
			"robots":         snap.Meta.Robots,
		},
		"location": map[string]any{
			"path":    loc.Path,
			"query":   loc.RawQuery,
			"entries": a.History.Len(),
		},
		"favourites": map[string]any{
			"count": len(items),
			"keys":  keys,
			"items": rows,
			"badge": a.FavouritesBadge(),
		},
		"profile": map[string]any(profile),
	}, nil
}
