package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/platinummonkey/pawndoc/pkg/config"
	"github.com/sirupsen/logrus"
)

// Emitted lists the files written for one plugin
type Emitted struct {
	DocPath     string `json:"doc_path" yaml:"doc_path"`
	UpdaterPath string `json:"updater_path" yaml:"updater_path"`
}

// Emitter renders documents into the configured output locations
type Emitter struct {
	cfg      *config.Config
	renderer *Renderer
	logger   *logrus.Logger
}

// NewEmitter creates an emitter using the templates configured in cfg
func NewEmitter(cfg *config.Config, logger *logrus.Logger) (*Emitter, error) {
	if logger == nil {
		logger = logrus.New()
	}

	renderer, err := NewRenderer(cfg.Paths.Templates)
	if err != nil {
		return nil, err
	}

	return &Emitter{
		cfg:      cfg,
		renderer: renderer,
		logger:   logger,
	}, nil
}

// Emit writes the documentation page and Updater manifest for doc
func (e *Emitter) Emit(doc *Document) (*Emitted, error) {
	if err := CheckVersion(doc.Info.Version); err != nil {
		e.logger.WithError(err).WithField("plugin", doc.Name).Warn("Plugin version is not semantic")
	}

	out := &Emitted{
		DocPath:     e.cfg.DocPath(doc.Name),
		UpdaterPath: e.cfg.UpdaterPath(doc.Name),
	}

	var buf bytes.Buffer
	if err := e.renderer.RenderPlugin(&buf, doc); err != nil {
		return nil, err
	}
	if err := WriteFileAtomic(out.DocPath, buf.Bytes(), 0644); err != nil {
		return nil, err
	}

	buf.Reset()
	if err := e.renderer.RenderUpdater(&buf, doc); err != nil {
		return nil, err
	}
	if err := WriteFileAtomic(out.UpdaterPath, buf.Bytes(), 0644); err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"plugin":  doc.Name,
		"doc":     e.cfg.Rel(out.DocPath),
		"updater": e.cfg.Rel(out.UpdaterPath),
	}).Debug("Wrote plugin artifacts")

	return out, nil
}

// EmitIndex writes the README index and returns its path
func (e *Emitter) EmitIndex(docs []*Document) (string, error) {
	path := e.cfg.Paths.Readme

	var buf bytes.Buffer
	if err := e.renderer.RenderReadme(&buf, docs); err != nil {
		return "", err
	}
	if err := WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return "", err
	}

	e.logger.WithFields(logrus.Fields{
		"path":    e.cfg.Rel(path),
		"plugins": len(docs),
	}).Info("Wrote plugin index")

	return path, nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}
