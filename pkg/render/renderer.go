package render

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	PluginTemplate  = "plugin.md.tmpl"
	UpdaterTemplate = "update.txt.tmpl"
	ReadmeTemplate  = "readme.md.tmpl"
)

// Renderer executes the artifact templates
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer loads the embedded templates, replacing each one with a file
// of the same name from overrideDir when it exists. An empty overrideDir
// uses the embedded templates only.
func NewRenderer(overrideDir string) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
	}

	for _, name := range []string{PluginTemplate, UpdaterTemplate, ReadmeTemplate} {
		content, err := loadTemplate(overrideDir, name)
		if err != nil {
			return nil, err
		}

		tmpl, err := template.New(name).Funcs(funcMap).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}

	return r, nil
}

func loadTemplate(overrideDir, name string) ([]byte, error) {
	if overrideDir != "" {
		content, err := os.ReadFile(filepath.Join(overrideDir, name))
		if err == nil {
			return content, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
	}
	return templateFS.ReadFile("templates/" + name)
}

// RenderPlugin writes the documentation page for doc
func (r *Renderer) RenderPlugin(w io.Writer, doc *Document) error {
	return r.execute(w, PluginTemplate, doc)
}

// RenderUpdater writes the Updater manifest for doc
func (r *Renderer) RenderUpdater(w io.Writer, doc *Document) error {
	return r.execute(w, UpdaterTemplate, doc)
}

// RenderReadme writes the index of docs in the given order
func (r *Renderer) RenderReadme(w io.Writer, docs []*Document) error {
	return r.execute(w, ReadmeTemplate, docs)
}

func (r *Renderer) execute(w io.Writer, name string, data interface{}) error {
	if err := r.templates[name].Execute(w, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return nil
}
