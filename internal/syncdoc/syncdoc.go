// Package syncdoc moves the learner's profile and favourites between devices
// as a single JSON document.
//
// Export asks each store for its own export and wraps the results. Import
// accepts text or an already decoded document, checks the provenance
// signature, then imports each section on its own. Rejections and failures
// never surface as returned errors: they are reported in a Result with a
// short reason code that StatusMessage turns into user-facing text.
package syncdoc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/ueah/internal/canonical"
	"github.com/roach88/ueah/internal/prefs"
)

// Provenance signature and format version written on export.
const (
	App           = "UEAH"
	DocType       = "sync"
	SchemaVersion = 1
)

// Document is the portable transfer format.
type Document struct {
	App           string                  `json:"app"`
	Type          string                  `json:"type"`
	SchemaVersion int                     `json:"schemaVersion"`
	ExportedAt    prefs.Timestamp         `json:"exportedAt"`
	Profile       prefs.Profile           `json:"profile"`
	Favourites    *prefs.FavouritesExport `json:"favourites"`
}

// Reason classifies a failed import.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNotRecognized Reason = "not_recognized"
	ReasonUnsupported   Reason = "unsupported"
	ReasonSaveFailed    Reason = "save_failed"
)

// ValidationError describes why a document or section was rejected.
type ValidationError struct {
	Reason  Reason
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("sync %s: %s", e.Reason, e.Message)
}

func reject(reason Reason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Section reports the outcome for one store.
type Section struct {
	Present bool   `json:"present"`
	OK      bool   `json:"ok"`
	Reason  Reason `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Section) fail(reason Reason, err error) {
	s.OK = false
	s.Reason = reason
	s.Error = err.Error()
}

// Result is the outcome of an import. OK is false when the document was
// rejected or when any present section failed; Reason is then the first
// failure's reason.
type Result struct {
	OK         bool    `json:"ok"`
	Reason     Reason  `json:"reason,omitempty"`
	Message    string  `json:"message,omitempty"`
	Profile    Section `json:"profile"`
	Favourites Section `json:"favourites"`
}

func rejected(err *ValidationError) Result {
	return Result{Reason: err.Reason, Message: err.Message}
}

// Options controls an import.
type Options struct {
	// Mode defaults to merge.
	Mode prefs.Mode
}

// Engine exports and imports sync documents over the selected stores.
type Engine struct {
	profile    prefs.ProfileStore
	favourites *prefs.Favourites
	now        func() time.Time
	logger     *slog.Logger
}

// New creates an Engine. Favourites imports go through the service so they
// publish the same count change as a manual toggle.
func New(profile prefs.ProfileStore, favourites *prefs.Favourites, now func() time.Time, logger *slog.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		profile:    profile,
		favourites: favourites,
		now:        now,
		logger:     logger.With("component", "syncdoc"),
	}
}

// Export builds a document from each store's export.
func (e *Engine) Export(ctx context.Context) (Document, error) {
	profile, err := e.profile.Export(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("export profile: %w", err)
	}
	favourites, err := e.favourites.Export(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("export favourites: %w", err)
	}
	if profile == nil {
		profile = prefs.Profile{}
	}
	if favourites.Items == nil {
		favourites.Items = []prefs.Favourite{}
	}
	return Document{
		App:           App,
		Type:          DocType,
		SchemaVersion: SchemaVersion,
		ExportedAt:    prefs.At(e.now()),
		Profile:       profile,
		Favourites:    &favourites,
	}, nil
}

// ExportJSON returns the exported document as indented UTF-8 JSON.
func (e *Engine) ExportJSON(ctx context.Context) ([]byte, error) {
	doc, err := e.Export(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Encode()
}

// Encode renders d as the indented JSON written to sync files.
func (d Document) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode sync document: %w", err)
	}
	return append(data, '\n'), nil
}

// Filename names an export written at t, in t's location.
func Filename(t time.Time) string {
	return "ueah-sync-" + t.Format("20060102-1504") + ".json"
}

// Import accepts text ([]byte or string), a decoded JSON object, or a
// Document.
func (e *Engine) Import(ctx context.Context, payload any, opts Options) Result {
	switch p := payload.(type) {
	case []byte:
		return e.ImportText(ctx, p, opts)
	case string:
		return e.ImportText(ctx, []byte(p), opts)
	case map[string]any:
		return e.ImportDocument(ctx, p, opts)
	case Document:
		return e.importStruct(ctx, p, opts)
	case *Document:
		if p == nil {
			return rejected(reject(ReasonNotRecognized, "empty document"))
		}
		return e.importStruct(ctx, *p, opts)
	default:
		return rejected(reject(ReasonNotRecognized, "unsupported payload %T", payload))
	}
}

// ImportText parses data and imports it.
func (e *Engine) ImportText(ctx context.Context, data []byte, opts Options) Result {
	v, err := canonical.Decode(data)
	if err != nil {
		e.logger.Info("sync import rejected", "reason", ReasonNotRecognized, "error", err)
		return rejected(reject(ReasonNotRecognized, "not valid JSON: %v", err))
	}
	raw, ok := v.(map[string]any)
	if !ok {
		e.logger.Info("sync import rejected", "reason", ReasonNotRecognized, "error", "not an object")
		return rejected(reject(ReasonNotRecognized, "document is not a JSON object"))
	}
	return e.ImportDocument(ctx, raw, opts)
}

func (e *Engine) importStruct(ctx context.Context, doc Document, opts Options) Result {
	data, err := json.Marshal(doc)
	if err != nil {
		return rejected(reject(ReasonNotRecognized, "encode document: %v", err))
	}
	return e.ImportText(ctx, data, opts)
}

// ImportDocument validates raw and imports its sections. No store is
// touched when the document itself is rejected.
func (e *Engine) ImportDocument(ctx context.Context, raw map[string]any, opts Options) Result {
	mode := opts.Mode
	if mode == "" {
		mode = prefs.ModeMerge
	}

	if verr := validate(raw); verr != nil {
		e.logger.Info("sync import rejected", "reason", verr.Reason, "error", verr.Message)
		return rejected(verr)
	}

	res := Result{OK: true}

	if v, ok := raw["profile"]; ok && v != nil {
		res.Profile.Present = true
		res.Profile.OK = true
		if profile, verr := decodeProfile(v); verr != nil {
			res.Profile.fail(verr.Reason, verr)
		} else if err := e.profile.Import(ctx, profile, mode); err != nil {
			res.Profile.fail(ReasonSaveFailed, err)
		}
	}

	if v, ok := raw["favourites"]; ok && v != nil {
		res.Favourites.Present = true
		res.Favourites.OK = true
		if exp, verr := decodeFavourites(v); verr != nil {
			res.Favourites.fail(verr.Reason, verr)
		} else if err := e.favourites.Import(ctx, exp, mode); err != nil {
			res.Favourites.fail(ReasonSaveFailed, err)
		}
	}

	for _, s := range []Section{res.Profile, res.Favourites} {
		if s.Present && !s.OK {
			res.OK = false
			res.Reason = s.Reason
			res.Message = s.Error
			break
		}
	}

	e.logger.Info("sync import",
		"mode", mode,
		"ok", res.OK,
		"reason", res.Reason,
		"profile", res.Profile.Present,
		"favourites", res.Favourites.Present,
	)
	return res
}

// validate checks the provenance signature. Missing app or type fields are
// tolerated; present ones must match.
func validate(raw map[string]any) *ValidationError {
	if v, ok := raw["app"]; ok {
		if s, _ := v.(string); s != App {
			return reject(ReasonNotRecognized, "app is %v, want %s", v, App)
		}
	}
	if v, ok := raw["type"]; ok {
		if s, _ := v.(string); s != DocType {
			return reject(ReasonUnsupported, "type is %v, want %s", v, DocType)
		}
	}
	if v, ok := raw["schemaVersion"]; ok {
		if err := checkVersion(v); err != nil {
			return err
		}
	}
	return nil
}

func checkVersion(v any) *ValidationError {
	n, ok := v.(json.Number)
	if !ok {
		return reject(ReasonUnsupported, "schemaVersion is %v", v)
	}
	version, err := n.Int64()
	if err != nil {
		return reject(ReasonUnsupported, "schemaVersion is %v", v)
	}
	if version > SchemaVersion {
		return reject(ReasonUnsupported, "schemaVersion %d is newer than %d", version, SchemaVersion)
	}
	return nil
}

func decodeProfile(v any) (prefs.Profile, *ValidationError) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, reject(ReasonUnsupported, "profile is not an object")
	}
	return prefs.Profile(obj), nil
}

// decodeFavourites accepts the {schemaVersion, updatedAt, items} section or
// a bare item array. Items that are not objects are skipped.
func decodeFavourites(v any) (prefs.FavouritesExport, *ValidationError) {
	var exp prefs.FavouritesExport
	var items []any

	switch val := v.(type) {
	case []any:
		items = val
	case map[string]any:
		if sv, ok := val["schemaVersion"]; ok {
			if err := checkVersion(sv); err != nil {
				return exp, err
			}
		}
		if ts, ok := val["updatedAt"]; ok {
			if data, err := json.Marshal(ts); err == nil {
				_ = exp.UpdatedAt.UnmarshalJSON(data)
			}
		}
		switch list := val["items"].(type) {
		case []any:
			items = list
		case nil:
		default:
			return exp, reject(ReasonUnsupported, "favourites items is not a list")
		}
	default:
		return exp, reject(ReasonUnsupported, "favourites is not an object")
	}

	exp.SchemaVersion = SchemaVersion
	exp.Items = make([]prefs.Favourite, 0, len(items))
	for _, it := range items {
		if _, ok := it.(map[string]any); !ok {
			continue
		}
		data, err := json.Marshal(it)
		if err != nil {
			continue
		}
		var f prefs.Favourite
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		exp.Items = append(exp.Items, f)
	}
	return exp, nil
}
