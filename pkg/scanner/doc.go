// Package scanner extracts declarative facts from SourcePawn plugin sources.
//
// # Overview
//
// The scanner applies a fixed set of extraction rules to raw source text and
// returns a Metadata record holding console variables, commands, file
// dependencies and owned include files. It does not parse SourcePawn as a
// grammar: only single-line, non-nested invocations are recognised and
// malformed calls are silently ignored.
//
// # Rules
//
// Each rule is keyed by a RuleKind and dispatched through a table built at
// package initialisation:
//
//	RuleCvar         CreateConVar(name, default, description, ...)
//	RuleCommand      Reg*Cmd(name, handler, description) / RegAdminCmd(name, handler, flags, description)
//	RuleTranslation  LoadTranslations(file)   -> translations/<file>.txt
//	RuleGameData     LoadGameConfigFile(file) -> gamedata/<file>.txt
//	RuleInclude      #include <name>          -> scripting/include/<name>.inc
//
// Cvars whose name ends with the configured version suffix are dropped.
// Includes in the stock or third-party exclusion sets are skipped, a
// self-include is recorded as an owned source and every other include is
// recorded once as a source dependency.
//
// # Matching
//
// Text matching sits behind the Matcher interface. RegexMatcher is the
// default implementation; a token-aware matcher can replace it without
// changing argument positions or exclusion handling.
//
// # Usage Example
//
//	s := scanner.New(scanner.OptionsFromConfig(cfg))
//	md, err := s.ScanFile(ctx, "ins_respawn", cfg.SourcePath("ins_respawn"))
//	if err != nil {
//		return err
//	}
//	for name, cvar := range md.Cvars {
//		fmt.Printf("%s = %s\n", name, cvar.Value)
//	}
//
// # Related Packages
//
//   - pkg/cache: Caches scan results by source content hash
//   - pkg/registry: Runs the scanner as the first pipeline step
package scanner
