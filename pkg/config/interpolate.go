package config

import (
	"fmt"
	"regexp"
	"strings"
)

var referenceRegex = regexp.MustCompile(`%\(([A-Za-z0-9_.\-]+)\)s`)

// Resolve expands %(key)s references in every value of section.
//
// Keys are looked up in section first and then in each scope in order.
// Values in scopes are expected to be resolved already. The returned map is
// a new map; section is not modified.
func Resolve(section map[string]string, scopes ...map[string]string) (map[string]string, error) {
	r := &resolver{
		section:  section,
		scopes:   scopes,
		resolved: make(map[string]string, len(section)),
		visiting: make(map[string]bool),
	}

	for key := range section {
		if _, err := r.resolveKey(key, nil); err != nil {
			return nil, err
		}
	}

	return r.resolved, nil
}

// ResolveValue expands references in a single value against scopes.
func ResolveValue(value string, scopes ...map[string]string) (string, error) {
	r := &resolver{
		section:  map[string]string{},
		scopes:   scopes,
		resolved: map[string]string{},
		visiting: map[string]bool{},
	}
	return r.expand(value, nil)
}

type resolver struct {
	section  map[string]string
	scopes   []map[string]string
	resolved map[string]string
	visiting map[string]bool
}

func (r *resolver) resolveKey(key string, chain []string) (string, error) {
	if value, ok := r.resolved[key]; ok {
		return value, nil
	}

	chain = append(chain, key)
	if r.visiting[key] {
		return "", fmt.Errorf("%w: %s", ErrReferenceCycle, strings.Join(chain, " -> "))
	}

	r.visiting[key] = true
	defer delete(r.visiting, key)

	value, err := r.expand(r.section[key], chain)
	if err != nil {
		return "", err
	}

	r.resolved[key] = value
	return value, nil
}

func (r *resolver) expand(value string, chain []string) (string, error) {
	var firstErr error

	out := referenceRegex.ReplaceAllStringFunc(value, func(match string) string {
		if firstErr != nil {
			return match
		}

		ref := strings.ToLower(referenceRegex.FindStringSubmatch(match)[1])

		if _, ok := r.section[ref]; ok {
			resolved, err := r.resolveKey(ref, chain)
			if err != nil {
				firstErr = err
				return match
			}
			return resolved
		}

		for _, scope := range r.scopes {
			if v, ok := scope[ref]; ok {
				return v
			}
		}

		firstErr = fmt.Errorf("%w: %q", ErrUnknownReference, ref)
		return match
	})

	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
