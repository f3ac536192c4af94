package generator

// The generator drives one run: address map in, C header out. Everything is
// rendered into memory first and the header is only written once every
// connection has been scanned (and checked, when asked), so a failed run
// leaves any previous header untouched.

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/xlate-vreg/internal/amap"
	"github.com/robert-at-pretension-io/xlate-vreg/internal/config"
	"github.com/robert-at-pretension-io/xlate-vreg/internal/manifest"
	"github.com/robert-at-pretension-io/xlate-vreg/internal/merge"
	"github.com/robert-at-pretension-io/xlate-vreg/internal/verify"
	"github.com/robert-at-pretension-io/xlate-vreg/internal/vreg"
)

// Generator turns an address map plus connection definitions into a header
type Generator struct {
	// Connection definitions; loaded with config.Load when nil
	Config *config.Config

	// Log receives progress and diagnostics. When nil a stderr logger is
	// built from Verbose and Trace.
	Log logrus.Ext1FieldLogger

	// Verbose output (per-connection progress)
	Verbose bool

	// Trace output (descriptor dumps)
	Trace bool

	// Timing output (JSONL)
	Timing     bool
	TimingPath string

	// Check parses the header as C before it is written
	Check bool

	// ManifestPath receives the register manifest when set
	ManifestPath string

	// DeltaFrom names a previous manifest to diff against; DeltaOut
	// receives the diff
	DeltaFrom string
	DeltaOut  string

	// Stdout receives the header when no output path is given
	Stdout io.Writer
}

// Result summarizes a run
type Result struct {
	Output      string             `json:"output"`
	Guard       string             `json:"guard"`
	Connections []ConnectionResult `json:"connections"`
	Skipped     []string           `json:"skipped,omitempty"`
	Registers   int                `json:"registers"`
	Manifest    manifest.Manifest  `json:"-"`
	Delta       *manifest.Delta    `json:"-"`
	Check       *verify.Report     `json:"-"`
}

// ConnectionResult is one scanned register source
type ConnectionResult struct {
	Name      string `json:"name"`
	File      string `json:"file"`
	Address   uint64 `json:"address"`
	Registers int    `json:"registers"`
}

// New creates a generator for cfg
func New(cfg *config.Config) *Generator {
	return &Generator{Config: cfg}
}

func (g *Generator) logger() logrus.Ext1FieldLogger {
	if g.Log != nil {
		return g.Log
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	switch {
	case g.Trace:
		l.SetLevel(logrus.TraceLevel)
	case g.Verbose:
		l.SetLevel(logrus.DebugLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}
	g.Log = l
	return l
}

// ListNames writes every address-map entry as "address  name"
func (g *Generator) ListNames(amapPath string, w io.Writer) error {
	m, err := amap.ParseFile(amapPath)
	if err != nil {
		return err
	}
	return amap.WriteNames(w, m)
}

// Run generates the header for amapPath. An empty outPath or "-" writes to
// Stdout.
func (g *Generator) Run(ctx context.Context, amapPath, outPath string) (*Result, error) {
	log := g.logger()
	runStart := time.Now()
	timing := newTimingRecorder(runStart, g.resolveTimingPath(outPath))
	if err := timing.Err(); err != nil {
		log.Warnf("timing output disabled: %v", err)
	}
	defer timing.Close()

	if g.Config == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		g.Config = cfg
	}
	cfg := g.Config

	// 1. Address map
	stepStart := time.Now()
	m, err := amap.ParseFile(amapPath)
	if err != nil {
		timing.RecordStage("amap", stepStart, "error")
		return nil, err
	}
	timing.RecordStage("amap", stepStart, "ok")
	log.Debugf("read %d connections from %s", m.Len(), amapPath)

	// 2. Attach register sources
	stepStart = time.Now()
	entries, err := merge.Resolve(m, cfg, cfg.Source())
	if err != nil {
		timing.RecordStage("merge", stepStart, "error")
		return nil, err
	}
	timing.RecordStage("merge", stepStart, "ok")
	if g.Trace {
		log.Tracef("resolved connections:\n%s", spew.Sdump(entries))
	}

	guard := cfg.Output.Guard
	if guard == "" {
		guard = vreg.GuardFor(outPath)
	}
	result := &Result{Output: outPath, Guard: guard}
	if toStdout(outPath) {
		result.Output = "-"
	}

	// 3. Render
	stepStart = time.Now()
	var buf bytes.Buffer
	builder := manifest.NewBuilder()
	if err := g.render(ctx, &buf, entries, amapPath, guard, builder, result, timing); err != nil {
		timing.RecordStage("emit", stepStart, "error")
		return nil, err
	}
	timing.RecordStage("emit", stepStart, "ok")

	// 4. Optional C parse of the result
	if g.Check {
		stepStart = time.Now()
		report, err := verify.Check(ctx, buf.Bytes())
		if err != nil {
			timing.RecordStage("check", stepStart, "error")
			return nil, err
		}
		result.Check = report
		if err := report.Err(); err != nil {
			timing.RecordStage("check", stepStart, "error")
			return nil, err
		}
		if report.Guard != guard {
			timing.RecordStage("check", stepStart, "error")
			return nil, fmt.Errorf("generated header is guarded by '%s', expected '%s'", report.Guard, guard)
		}
		timing.RecordStage("check", stepStart, "ok")
		log.Debugf("header check passed: %d defines", len(report.Defines))
	}

	// 5. Manifest and delta are settled before anything is written
	result.Manifest = builder.Manifest()
	if err := g.prepareManifest(result); err != nil {
		return nil, err
	}

	// 6. Commit
	if toStdout(outPath) {
		out := g.Stdout
		if out == nil {
			out = os.Stdout
		}
		if _, err := out.Write(buf.Bytes()); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
	} else if err := writeFileAtomic(outPath, buf.Bytes()); err != nil {
		return nil, err
	}

	if err := g.writeManifest(result); err != nil {
		return nil, err
	}

	timing.RecordStage("total", runStart, "ok")
	if timing.Enabled() {
		log.Debugf("timing events written")
	}
	log.WithFields(logrus.Fields{
		"connections": len(result.Connections),
		"skipped":     len(result.Skipped),
		"registers":   result.Registers,
	}).Infof("generated %s", result.Output)

	return result, nil
}

func (g *Generator) render(ctx context.Context, w io.Writer, entries []amap.Entry, amapPath, guard string, builder *manifest.Builder, result *Result, timing *timingRecorder) error {
	log := g.logger()
	cfg := g.Config

	banner := vreg.Banner{
		AddressMap: amapPath,
		Config:     cfg.Source(),
		Text:       cfg.Output.Banner,
	}
	if err := vreg.WritePreamble(w, banner, guard); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		omitted := merge.Omitted(e)
		builder.BeginConnection(e, omitted)
		if omitted {
			log.WithField("connection", e.Name).Debug("no register file, skipping")
			result.Skipped = append(result.Skipped, e.Name)
			continue
		}

		fileStart := time.Now()
		path := cfg.ResolveSource(e.SourceFile)
		n, err := g.scanFile(path, e, w, builder)
		if err != nil {
			timing.RecordFile("emit", path, "error", fileStart)
			return err
		}
		timing.RecordFile("emit", path, "ok", fileStart)

		log.WithFields(logrus.Fields{
			"connection": e.Name,
			"address":    fmt.Sprintf("0x%016x", e.Address),
			"registers":  n,
		}).Debugf("scanned %s", path)

		result.Connections = append(result.Connections, ConnectionResult{
			Name:      e.Name,
			File:      path,
			Address:   e.Address,
			Registers: n,
		})
		result.Registers += n
	}

	if err := vreg.WritePostamble(w, guard); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

func (g *Generator) scanFile(path string, e amap.Entry, w io.Writer, builder *manifest.Builder) (int, error) {
	log := g.logger()

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("can't open %s: %w", path, err)
	}
	defer f.Close()

	n := 0
	err = vreg.Scan(f, e.Address, e.Prefix, func(reg *vreg.Register) error {
		if g.Trace {
			log.Tracef("register %s:\n%s", reg.Name, spew.Sdump(reg.Descriptors))
		}
		builder.AddRegister(reg)
		n++
		if err := vreg.WriteRegister(w, reg); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// prepareManifest validates the manifest and computes the delta so that a
// bad manifest or an unreadable baseline fails the run before the header
// is committed.
func (g *Generator) prepareManifest(result *Result) error {
	log := g.logger()

	if g.ManifestPath != "" {
		if err := manifest.Validate(result.Manifest); err != nil {
			return err
		}
	}

	if g.DeltaFrom == "" {
		return nil
	}
	prev, err := manifest.Load(g.DeltaFrom)
	if err != nil {
		return err
	}
	delta := manifest.ComputeDelta(prev, result.Manifest)
	result.Delta = &delta

	if delta.Unchanged() {
		log.Infof("register map unchanged against %s", g.DeltaFrom)
	} else {
		log.WithFields(logrus.Fields{
			"registers_added":   len(delta.Added.Registers),
			"registers_removed": len(delta.Removed.Registers),
			"fields_added":      len(delta.Added.Fields),
			"fields_removed":    len(delta.Removed.Fields),
		}).Infof("register map delta against %s", g.DeltaFrom)
	}

	if g.DeltaOut != "" {
		return manifest.ValidateDelta(delta)
	}
	return nil
}

func (g *Generator) writeManifest(result *Result) error {
	if g.ManifestPath != "" {
		if err := manifest.Write(g.ManifestPath, result.Manifest); err != nil {
			return err
		}
		g.logger().Debugf("manifest written to %s", g.ManifestPath)
	}
	if g.DeltaOut != "" && result.Delta != nil {
		return manifest.WriteDelta(g.DeltaOut, *result.Delta)
	}
	return nil
}
