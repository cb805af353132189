package render

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/semver/v3"
)

var funcMap = template.FuncMap{
	"default": func(def, val string) string {
		if val == "" {
			return def
		}
		return val
	},
	"cell": markdownCell,
	"kv":   keyValueString,
}

// CheckVersion reports whether a plugin version parses as semver. An empty
// version is accepted. The version itself is never rewritten: Updater
// compares Latest against the running plugin's string verbatim.
func CheckVersion(v string) error {
	if v == "" {
		return nil
	}
	if _, err := semver.StrictNewVersion(strings.TrimPrefix(v, "v")); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidVersion, v, err)
	}
	return nil
}

var cellReplacer = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")

func markdownCell(s string) string {
	return cellReplacer.Replace(s)
}

var kvReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func keyValueString(s string) string {
	return kvReplacer.Replace(s)
}
