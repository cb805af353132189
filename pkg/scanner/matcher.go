package scanner

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// argCutset is stripped from both ends of every call argument
const argCutset = "'\" \t"

// Call is a single matched invocation
type Call struct {
	// Name is the called function as written, e.g. RegAdminCmd
	Name string

	// Args are the literal argument values in order
	Args []string
}

// Arg returns argument i or an empty string when the call has fewer arguments
func (c Call) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Matcher locates invocations and include directives in source text
type Matcher interface {
	// FindCalls returns every invocation of a function whose name matches
	// callPattern, in source order
	FindCalls(src, callPattern string) []Call

	// FindIncludes returns the names of every #include <name> directive
	FindIncludes(src string) []string
}

var includeRegex = regexp.MustCompile(`#include[\t ]*<([^>]+)>`)

// RegexMatcher matches single-line, non-nested calls terminated by ");".
// Arguments are split on every comma, including commas inside string literals.
type RegexMatcher struct {
	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

// NewRegexMatcher creates a regex based matcher
func NewRegexMatcher() *RegexMatcher {
	return &RegexMatcher{
		cache: make(map[string]*regexp.Regexp),
	}
}

// FindCalls implements Matcher
func (m *RegexMatcher) FindCalls(src, callPattern string) []Call {
	re := m.compile(callPattern)

	var calls []Call
	for _, match := range re.FindAllStringSubmatch(src, -1) {
		calls = append(calls, Call{
			Name: match[1],
			Args: SplitArgs(match[2]),
		})
	}
	return calls
}

// FindIncludes implements Matcher
func (m *RegexMatcher) FindIncludes(src string) []string {
	var names []string
	for _, match := range includeRegex.FindAllStringSubmatch(src, -1) {
		names = append(names, match[1])
	}
	return names
}

func (m *RegexMatcher) compile(callPattern string) *regexp.Regexp {
	m.mu.Lock()
	defer m.mu.Unlock()

	if re, ok := m.cache[callPattern]; ok {
		return re
	}

	re := regexp.MustCompile(fmt.Sprintf(`(%s)\s*\((.*)\);`, callPattern))
	m.cache[callPattern] = re
	return re
}

// SplitArgs splits a raw argument list on commas and strips quotes and
// blanks from each value
func SplitArgs(raw string) []string {
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(p, argCutset)
	}
	return parts
}
