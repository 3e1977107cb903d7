package cdb

import (
	"slices"

	"github.com/charmbracelet/log"

	"recap/pkg/alias"
	"recap/pkg/classify"
)

// BuildCompilation applies the simplified alias map to raw compiler
// classifications and emits one canonical entry per tracked source file. The
// output argument slot is rewritten with the resolved final name, sibling
// inputs of multi-file invocations are removed, and a -c flag is inserted
// when the original invocation implicitly also linked.
func BuildCompilation(cmds []*classify.Compile, am *alias.Map) []CompileEntry {
	var entries []CompileEntry
	for _, cmd := range cmds {
		for _, file := range cmd.Files {
			args := append([]string{cmd.Compiler}, slices.Clone(cmd.Arguments)...)
			output := resolveOutput(am, cmd, file)
			if cmd.OutputIndex >= 0 {
				args[cmd.OutputIndex+1] = output
			}
			args = reformatInput(args, file, cmd.Files, cmd.CompileOnly)
			entries = append(entries, CompileEntry{
				Output:    output,
				Directory: cmd.Directory,
				File:      file,
				Arguments: args,
			})
		}
	}
	return entries
}

// resolveOutput maps a descriptor's declared output to its final stable
// name. When the alias map holds several candidates (one source producing
// variant outputs across invocations), the candidate whose own resolved name
// appears in this file's chain wins: it is the output this input is actually
// known to produce. Unresolved ambiguity is reported and the declared name
// kept rather than silently picking a candidate.
func resolveOutput(am *alias.Map, cmd *classify.Compile, file string) string {
	if cands, ok := am.Candidates(cmd.Output); ok {
		chain, _ := am.Candidates(file)
		for _, cand := range cands {
			if final, ok := am.Resolve(cand); ok && slices.Contains(chain, final) {
				return final
			}
		}
		log.Warnf("ambiguous output %s for %s, keeping declared name", cmd.Output, file)
		return cmd.Output
	}
	if final, ok := am.Resolve(cmd.Output); ok {
		return final
	}
	return cmd.Output
}

// reformatInput rebuilds an argument list around a single input file:
// sibling tracked files vanish, and -c is inserted before the input when the
// invocation was not compile-only.
func reformatInput(args []string, file string, files []string, compileOnly bool) []string {
	for _, f := range files {
		if f == file {
			if !compileOnly {
				if i := slices.Index(args, f); i >= 0 {
					args = slices.Insert(args, i, "-c")
				}
			}
			continue
		}
		if i := slices.Index(args, f); i >= 0 {
			args = slices.Delete(args, i, i+1)
		}
	}
	return args
}

// BuildLinking applies the alias map to raw linker and archiver
// classifications. Files absent from the map reference libraries outside the
// observed build and are dropped from the file list and the argument list;
// the rest partition into objects (rewritten through the map), shared
// libraries, and archives. Descriptors left with no resolved file are
// discarded.
func BuildLinking(cmds []*classify.Link, am *alias.Map) []LinkEntry {
	var entries []LinkEntry
	for _, cmd := range cmds {
		args := slices.Clone(cmd.Arguments)
		var objects, archives, shareds []string
		for _, f := range cmd.Files {
			if !am.Has(f) {
				if i := slices.Index(args, f); i >= 0 {
					args = slices.Delete(args, i, i+1)
				}
				continue
			}
			switch {
			case classify.ObjectPattern.MatchString(f):
				final, ok := am.Resolve(f)
				if !ok {
					final = f
				}
				objects = append(objects, final)
				if i := slices.Index(args, f); i >= 0 {
					args[i] = final
				}
			case classify.SharedPattern.MatchString(f):
				shareds = append(shareds, f)
			default:
				archives = append(archives, f)
			}
		}
		if len(objects) == 0 && len(archives) == 0 && len(shareds) == 0 {
			continue
		}
		entries = append(entries, LinkEntry{
			Output:    cmd.Output,
			Directory: cmd.Directory,
			Arguments: append([]string{cmd.Linker}, args...),
			Objects:   objects,
			Archives:  archives,
			Shareds:   shareds,
		})
	}
	return entries
}
