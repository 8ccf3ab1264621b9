// Package preload renders the early-hook JavaScript program injected into
// the observed runtime (§4.A–§4.E, §6) from a single Go source of truth.
//
// The template itself is data, not logic invented in this package: every
// cap, sentinel, and regex it substitutes is imported from internal/redact,
// internal/idnorm, and pkg/event, so the generated JS can never drift from
// the Go reference pipeline in internal/instrument that implements the same
// contract for tests and the selfcheck command.
package preload

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/npm-malwatch/npm-malwatch/internal/idnorm"
	"github.com/npm-malwatch/npm-malwatch/internal/redact"
	"github.com/npm-malwatch/npm-malwatch/pkg/event"
)

//go:embed templates/preload.js.tmpl
var templateFS embed.FS

var tmpl = template.Must(template.ParseFS(templateFS, "templates/preload.js.tmpl"))

// GeneratorName identifies this tool in the generated file's banner comment.
const GeneratorName = "npm-malwatch"

// Config carries the per-run values substituted into the rendered preload,
// mirroring the environment variables documented in §6.
type Config struct {
	Session   string
	LogPath   string
	Filter    string
	IncludePM bool
	Hardening string
}

// templateData is the full set of values handed to the template: Config
// plus every Go constant the generated JS must agree with byte-for-byte.
type templateData struct {
	GeneratorName string
	Session       string
	LogPathJSON   string
	SessionJSON   string
	FilterJSON    string
	IncludePM    bool
	HardeningJSON string

	PkgUnknownJSON  string
	PkgMalwatchJSON string
	PkgNPMJSON      string
	PkgPNPMJSON     string

	MaxArgString   int
	MaxHostString  int
	MaxCommand     int
	MaxArgvElement int
	MaxStackLines  int
	MaxStackChars  int
	MaxRedactDepth int
	MaxRedactArray int
	MaxRedactKeys  int

	RedactedValueJSON string

	SensitiveKeyPatternJSON     string
	NodeModulesPatternJSON      string
	RuntimeInternalPrefixesJSON string
	PMNamesJSON                 string
	PMScopesJSON                string
	DefaultCheckSetJSON         string
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("preload: value not JSON-serializable: %v", err))
	}
	return string(b)
}

func newTemplateData(cfg Config) templateData {
	return templateData{
		GeneratorName: GeneratorName,
		Session:       cfg.Session,
		LogPathJSON:   mustJSON(cfg.LogPath),
		SessionJSON:   mustJSON(cfg.Session),
		FilterJSON:    mustJSON(cfg.Filter),
		IncludePM:    cfg.IncludePM,
		HardeningJSON: mustJSON(cfg.Hardening),

		PkgUnknownJSON:  mustJSON(event.PkgUnknown),
		PkgMalwatchJSON: mustJSON(event.PkgMalwatch),
		PkgNPMJSON:      mustJSON(event.PkgNPM),
		PkgPNPMJSON:     mustJSON(event.PkgPNPM),

		MaxArgString:   redact.MaxArgString,
		MaxHostString:  redact.MaxHostString,
		MaxCommand:     redact.MaxCommand,
		MaxArgvElement: redact.MaxArgvElement,
		MaxStackLines:  redact.MaxStackLines,
		MaxStackChars:  redact.MaxStackChars,
		MaxRedactDepth: redact.MaxRedactDepth,
		MaxRedactArray: redact.MaxRedactArray,
		MaxRedactKeys:  redact.MaxRedactKeys,

		RedactedValueJSON: mustJSON(redact.RedactedValue),

		SensitiveKeyPatternJSON:     mustJSON(redact.SensitiveKeyPattern.String()),
		NodeModulesPatternJSON:      mustJSON(idnorm.NodeModulesPatternSource),
		RuntimeInternalPrefixesJSON: mustJSON(idnorm.RuntimeInternalPrefixes),
		PMNamesJSON:                 mustJSON(idnorm.PMNames),
		PMScopesJSON:                mustJSON(idnorm.PMScopes),
		DefaultCheckSetJSON:         mustJSON(defaultCheckSet),
	}
}

// defaultCheckSet mirrors internal/instrument.DefaultCheckSet; duplicated
// here as a plain slice (rather than importing internal/instrument) to keep
// preload's dependency graph one-directional: instrument depends on event
// and sink, preload depends on event/redact/idnorm, and neither depends on
// the other.
var defaultCheckSet = []string{
	event.OpFSWriteFileSync,
	event.OpChildSpawn,
	event.OpHTTPRequest,
	event.OpDNSLookup,
}

// Render renders the preload program for cfg and returns its source text.
func Render(cfg Config) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, newTemplateData(cfg)); err != nil {
		return "", fmt.Errorf("preload: render template: %w", err)
	}
	return buf.String(), nil
}

// WriteTemp renders the preload program for cfg and writes it to a fresh
// file under dir (or the system temp directory if dir is empty), returning
// its absolute path. The caller is responsible for removing it once the
// observed child has exited.
func WriteTemp(cfg Config, dir string) (string, error) {
	source, err := Render(cfg)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, "npm-malwatch-preload-*.js")
	if err != nil {
		return "", fmt.Errorf("preload: create temp file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(source); err != nil {
		return "", fmt.Errorf("preload: write temp file: %w", err)
	}
	abs, err := filepath.Abs(f.Name())
	if err != nil {
		return "", fmt.Errorf("preload: resolve absolute path: %w", err)
	}
	return abs, nil
}
