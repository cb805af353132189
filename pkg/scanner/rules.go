package scanner

import (
	"path"
	"strings"
)

// adminCommand is the registration call that carries an extra flags argument
const adminCommand = "RegAdminCmd"

// ruleFunc applies one extraction rule to the scan in progress
type ruleFunc func(st *scanState)

// ruleOrder is the order rules run in
var ruleOrder = []RuleKind{
	RuleCvar,
	RuleCommand,
	RuleTranslation,
	RuleGameData,
	RuleInclude,
}

// callPatterns maps call based rules to the function names they match
var callPatterns = map[RuleKind]string{
	RuleCvar:        `CreateConVar`,
	RuleCommand:     `Reg[A-Za-z]*Cmd`,
	RuleTranslation: `LoadTranslations`,
	RuleGameData:    `LoadGameConfigFile`,
}

var ruleTable map[RuleKind]ruleFunc

func init() {
	ruleTable = map[RuleKind]ruleFunc{
		RuleCvar:        applyCvarRule,
		RuleCommand:     applyCommandRule,
		RuleTranslation: applyResourceRule(RuleTranslation),
		RuleGameData:    applyResourceRule(RuleGameData),
		RuleInclude:     applyIncludeRule,
	}
}

// scanState carries one scan through the rule table
type scanState struct {
	name    string
	src     string
	opts    *Options
	matcher Matcher
	md      *Metadata
}

func (st *scanState) calls(kind RuleKind) []Call {
	return st.matcher.FindCalls(st.src, callPatterns[kind])
}

func applyCvarRule(st *scanState) {
	for _, call := range st.calls(RuleCvar) {
		name := call.Arg(0)
		if name == "" {
			continue
		}
		if st.opts.VersionSuffix != "" && strings.HasSuffix(name, st.opts.VersionSuffix) {
			continue
		}
		st.md.Cvars[name] = Cvar{
			Value:       call.Arg(1),
			Description: call.Arg(2),
		}
	}
}

func applyCommandRule(st *scanState) {
	for _, call := range st.calls(RuleCommand) {
		name := call.Arg(0)
		if name == "" {
			continue
		}

		cmd := Command{
			Function: call.Arg(1),
			Admin:    call.Name == adminCommand,
		}

		descIdx := 2
		if cmd.Admin {
			descIdx = 3
		}
		if len(call.Args) > descIdx {
			cmd.Description = call.Args[descIdx]
			cmd.HasDescription = true
		}

		st.md.Commands[name] = cmd
	}
}

func applyResourceRule(kind RuleKind) ruleFunc {
	return func(st *scanState) {
		dir, ext := st.opts.resource(kind)
		for _, call := range st.calls(kind) {
			file := call.Arg(0)
			if file == "" {
				continue
			}
			dep := path.Join(dir, file+"."+ext)
			st.md.Dependencies.Plugin = appendUnique(st.md.Dependencies.Plugin, dep)
		}
	}
}

func applyIncludeRule(st *scanState) {
	for _, include := range st.matcher.FindIncludes(st.src) {
		incFile := path.Join(st.opts.IncludeDir, include+"."+st.opts.IncludeExt)

		if st.opts.isExcluded(include) || contains(st.md.OwnedSources, incFile) {
			continue
		}

		if include == st.name {
			st.md.OwnedSources = append(st.md.OwnedSources, incFile)
		} else {
			st.md.Dependencies.Source = appendUnique(st.md.Dependencies.Source, incFile)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func appendUnique(list []string, s string) []string {
	if contains(list, s) {
		return list
	}
	return append(list, s)
}
