package scanner

// RuleKind identifies a declaration kind handled by an extraction rule
type RuleKind int

const (
	RuleCvar RuleKind = iota
	RuleCommand
	RuleTranslation
	RuleGameData
	RuleInclude
)

// String returns the rule kind name
func (k RuleKind) String() string {
	switch k {
	case RuleCvar:
		return "cvar"
	case RuleCommand:
		return "command"
	case RuleTranslation:
		return "translation"
	case RuleGameData:
		return "gamedata"
	case RuleInclude:
		return "include"
	default:
		return "unknown"
	}
}

// Cvar is a console variable declared in source
type Cvar struct {
	Value       string `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// Command is a console command registered in source
type Command struct {
	Function    string `json:"function" yaml:"function"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// HasDescription is false when the registration call had too few arguments
	HasDescription bool `json:"-" yaml:"-"`

	// Admin is true for RegAdminCmd registrations
	Admin bool `json:"admin,omitempty" yaml:"admin,omitempty"`
}

// Dependencies partitions the files a plugin needs but does not own
type Dependencies struct {
	// Plugin lists runtime artifacts such as translations and gamedata files
	Plugin []string `json:"plugin" yaml:"plugin"`

	// Source lists include files from other plugins
	Source []string `json:"source" yaml:"source"`
}

// Metadata is the fact set extracted from one plugin source
type Metadata struct {
	Cvars        map[string]Cvar    `json:"cvars" yaml:"cvars"`
	Commands     map[string]Command `json:"commands" yaml:"commands"`
	Dependencies Dependencies       `json:"dependencies" yaml:"dependencies"`
	OwnedSources []string           `json:"owned_sources" yaml:"owned_sources"`
}

// NewMetadata returns an empty metadata record
func NewMetadata() *Metadata {
	return &Metadata{
		Cvars:    make(map[string]Cvar),
		Commands: make(map[string]Command),
		Dependencies: Dependencies{
			Plugin: []string{},
			Source: []string{},
		},
		OwnedSources: []string{},
	}
}

// Clone returns a deep copy of m
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}

	out := NewMetadata()
	for k, v := range m.Cvars {
		out.Cvars[k] = v
	}
	for k, v := range m.Commands {
		out.Commands[k] = v
	}
	out.Dependencies.Plugin = append(out.Dependencies.Plugin, m.Dependencies.Plugin...)
	out.Dependencies.Source = append(out.Dependencies.Source, m.Dependencies.Source...)
	out.OwnedSources = append(out.OwnedSources, m.OwnedSources...)
	return out
}

// IsEmpty reports whether no facts were extracted
func (m *Metadata) IsEmpty() bool {
	return len(m.Cvars) == 0 &&
		len(m.Commands) == 0 &&
		len(m.Dependencies.Plugin) == 0 &&
		len(m.Dependencies.Source) == 0 &&
		len(m.OwnedSources) == 0
}
