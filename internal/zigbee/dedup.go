// Package zigbee cleans up zigbee2mqtt device files.
//
// zigbee2mqtt writes devices it pairs to devices-auto.yaml, while devices
// managed in git live in devices.yaml. A device present in both is removed
// from the auto file so the static definition wins.
package zigbee

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/systmms/homelab/internal/logging"
	"github.com/systmms/homelab/internal/metrics"
)

// Stage names, as recorded in metrics.
const (
	StageLoad  = "load"
	StageWrite = "write"
)

// Options selects the files to reconcile.
type Options struct {
	AutoPath   string
	StaticPath string
	DryRun     bool
}

// Report summarizes one run.
type Report struct {
	AutoCount   int
	StaticCount int
	// Removed lists duplicate device IDs in the order they appeared in the
	// auto file.
	Removed []string
	Written bool
}

// Deduper removes statically defined devices from the auto device file.
type Deduper struct {
	logger  *logging.Logger
	metrics *metrics.Recorder
}

// New creates a Deduper. Both arguments may be nil.
func New(logger *logging.Logger, rec *metrics.Recorder) *Deduper {
	if logger == nil {
		logger = logging.NewWithWriter(io.Discard, false, true)
	}
	if rec == nil {
		rec = metrics.NewRecorder("zigbee-dedup")
	}
	return &Deduper{logger: logger, metrics: rec}
}

// Run loads both files and rewrites the auto file without the duplicates.
// The auto file is left untouched when nothing is removed or DryRun is set.
func (d *Deduper) Run(opts Options) (*Report, error) {
	d.logger.Info("Loading device configuration files...")

	var auto, static *deviceFile
	if err := d.metrics.Stage(StageLoad, func() error {
		var err error
		if auto, err = loadDeviceFile(opts.AutoPath); err != nil {
			return err
		}
		static, err = loadDeviceFile(opts.StaticPath)
		return err
	}); err != nil {
		return nil, err
	}

	report := &Report{
		AutoCount:   auto.Len(),
		StaticCount: static.Len(),
	}
	d.logger.Info("Found %d devices in %s", report.AutoCount, filepath.Base(opts.AutoPath))
	d.logger.Info("Found %d devices in %s", report.StaticCount, filepath.Base(opts.StaticPath))

	report.Removed = auto.Remove(static.IDs())
	if len(report.Removed) == 0 {
		d.logger.Info("No duplicate devices found, no changes needed")
		return report, nil
	}

	d.logger.Info("Found %d duplicate devices to remove from %s:", len(report.Removed), filepath.Base(opts.AutoPath))
	for _, id := range report.Removed {
		d.logger.Info("  - %s", id)
	}

	if opts.DryRun {
		d.logger.Warn("Dry run: %s not modified", opts.AutoPath)
		return report, nil
	}

	if err := d.metrics.Stage(StageWrite, func() error {
		return auto.Save()
	}); err != nil {
		return report, err
	}
	report.Written = true

	d.logger.Info("Successfully updated %s", opts.AutoPath)
	d.logger.Info("Removed %d duplicate devices from %s", len(report.Removed), filepath.Base(opts.AutoPath))
	return report, nil
}

// deviceFile is a device mapping kept as a yaml.Node so comments and key
// order survive a rewrite.
type deviceFile struct {
	path    string
	doc     *yaml.Node
	mapping *yaml.Node
}

// loadDeviceFile parses path. A missing or empty file is an empty mapping.
func loadDeviceFile(path string) (*deviceFile, error) {
	f := &deviceFile{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return f, nil
	}

	root := doc.Content[0]
	switch {
	case root.Kind == yaml.MappingNode:
		f.doc = &doc
		f.mapping = root
	case root.Kind == yaml.ScalarNode && root.Tag == "!!null":
		// "~" or "null" on its own
	default:
		return nil, fmt.Errorf("%s: expected a mapping of device IDs, got %s", path, kindName(root.Kind))
	}
	return f, nil
}

// Len returns the number of devices.
func (f *deviceFile) Len() int {
	if f.mapping == nil {
		return 0
	}
	return len(f.mapping.Content) / 2
}

// IDs returns the set of device IDs.
func (f *deviceFile) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, f.Len())
	if f.mapping == nil {
		return ids
	}
	for i := 0; i+1 < len(f.mapping.Content); i += 2 {
		ids[f.mapping.Content[i].Value] = struct{}{}
	}
	return ids
}

// Remove drops every device whose ID is in ids and returns the removed IDs.
func (f *deviceFile) Remove(ids map[string]struct{}) []string {
	if f.mapping == nil {
		return nil
	}

	var removed []string
	kept := f.mapping.Content[:0]
	for i := 0; i+1 < len(f.mapping.Content); i += 2 {
		key, value := f.mapping.Content[i], f.mapping.Content[i+1]
		if _, dup := ids[key.Value]; dup {
			removed = append(removed, key.Value)
			continue
		}
		kept = append(kept, key, value)
	}
	f.mapping.Content = kept
	return removed
}

// Save rewrites the file through a temp file in the same directory.
func (f *deviceFile) Save() error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f.doc); err != nil {
		return fmt.Errorf("failed to encode %s: %w", f.path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode %s: %w", f.path, err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(f.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", f.path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to save %s: %w", f.path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to save %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save %s: %w", f.path, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to save %s: %w", f.path, err)
	}
	return nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "node"
	}
}
