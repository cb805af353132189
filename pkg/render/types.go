package render

import (
	"sort"

	"github.com/platinummonkey/pawndoc/pkg/scanner"
	"github.com/platinummonkey/pawndoc/pkg/smx"
)

// Document is the read-only view of a plugin handed to templates
type Document struct {
	Name string
	Info smx.MyInfo

	Cvars        []CvarRow
	Commands     []CommandRow
	Dependencies scanner.Dependencies

	// Files lists repository relative paths the plugin owns
	Files Files

	// DocPath is the documentation file relative to the README
	DocPath string

	Disabled bool
}

// Files partitions the artifacts a plugin owns
type Files struct {
	Plugin []string `json:"plugin" yaml:"plugin"`
	Source []string `json:"source" yaml:"source"`
}

// CvarRow is one line of the cvar table
type CvarRow struct {
	Name        string
	Value       string
	Description string
}

// CommandRow is one line of the command table
type CommandRow struct {
	Name        string
	Function    string
	Description string
	Admin       bool
}

// NewDocument builds a document with cvars and commands sorted by name.
// md may be nil.
func NewDocument(name string, info smx.MyInfo, md *scanner.Metadata, files Files) *Document {
	doc := &Document{
		Name:  name,
		Info:  info,
		Files: files,
	}
	if md == nil {
		return doc
	}

	for n, c := range md.Cvars {
		doc.Cvars = append(doc.Cvars, CvarRow{Name: n, Value: c.Value, Description: c.Description})
	}
	sort.Slice(doc.Cvars, func(i, j int) bool { return doc.Cvars[i].Name < doc.Cvars[j].Name })

	for n, c := range md.Commands {
		doc.Commands = append(doc.Commands, CommandRow{
			Name:        n,
			Function:    c.Function,
			Description: c.Description,
			Admin:       c.Admin,
		})
	}
	sort.Slice(doc.Commands, func(i, j int) bool { return doc.Commands[i].Name < doc.Commands[j].Name })

	doc.Dependencies = md.Dependencies
	return doc
}
