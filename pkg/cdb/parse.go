package cdb

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/google/shlex"

	"recap/pkg/classify"
)

// Unit is one translation unit prepared for artifact generation: a compile
// command re-parsed from the database with the configured compiler
// substituted and diagnostics/optimization flags neutralized.
type Unit struct {
	Compiler    string
	Directory   string
	Files       []string
	Arguments   []string
	Output      string
	OutputIndex int
	// Entry keeps the normalized database record, re-emitted into scoped
	// per-target databases.
	Entry CompileEntry
}

// Target is a link command reduced to its dependency information.
type Target struct {
	Output    string
	Objects   []string
	Libraries []string
}

var (
	jsonCompilerC   = regexp.MustCompile(`^([\w-]*g?cc|clang)(-[\d.]+)?$`)
	jsonCompilerCXX = regexp.MustCompile(`^([\w-]*[gc]\+\+|clang\+\+)(-[\d.]+)?$`)

	// jsonCompilerRemove additionally strips diagnostics and optimization
	// level flags; the regeneration pass appends its own.
	jsonCompilerRemove = append(slices.Clone(classify.CompilerRemove),
		classify.Param{Matcher: regexp.MustCompile(`^-(w|g|O([0123sg]|fast)?)$`), Count: 0})

	// unitAppend neutralizes warnings and debug/optimization settings so the
	// derivative artifacts are stable across toolchain defaults.
	unitAppend = []string{"-w", "-g", "-O0"}
)

// ParseUnits re-classifies persisted compile entries into schedulable units,
// keyed by their unique output object path. The original C or C++ driver is
// replaced with the configured one; entries whose declared output is not an
// object file (implicitly linked invocations) get a synthesized unique
// object name derived from the source path.
func ParseUnits(entries []CompileEntry, cc, cxx string) (map[string]Unit, error) {
	rules := &classify.RuleSet{
		Executables: []*regexp.Regexp{jsonCompilerC, jsonCompilerCXX},
		Tools:       []string{cc, cxx},
		Abort:       classify.CompilerAbort,
		Remove:      jsonCompilerRemove,
		Output:      &classify.OutputFlag,
		Source:      classify.SourcePattern,
	}

	units := make(map[string]Unit, len(entries))
	for _, e := range entries {
		argv, err := entryArguments(e.Arguments, e.Command)
		if err != nil {
			return nil, fmt.Errorf("invalid entry for %s: %w", e.File, err)
		}
		file := classify.AbsJoin(e.Directory, e.File)
		d := rules.Classify(argv, e.Directory)
		if d == nil {
			log.Warnf("skipping unclassifiable entry for %s", file)
			continue
		}
		output := d.Output
		if output == "" {
			output = file + ".o"
		} else if !classify.ObjectPattern.MatchString(output) {
			output = file + "." + targetID(output) + ".o"
			d.Arguments[d.OutputIndex] = output
		}
		args := append(slices.Clone(d.Arguments), unitAppend...)
		args = reformatInput(args, file, d.Files, slices.Contains(args, "-c"))
		// an inserted -c shifts everything after the input file
		outputIndex := slices.Index(args, output)
		normalized := e
		normalized.File = file
		normalized.Arguments = argv
		normalized.Command = ""
		units[output] = Unit{
			Compiler:    d.Tool,
			Directory:   d.Directory,
			Files:       d.Files,
			Arguments:   args,
			Output:      output,
			OutputIndex: outputIndex,
			Entry:       normalized,
		}
	}
	return units, nil
}

// targetID derives a short disambiguator from a non-object output path: the
// last character of its directory plus its base name.
func targetID(name string) string {
	dir := filepath.Dir(name)
	return dir[len(dir)-1:] + "." + filepath.Base(name)
}

// ParseTargets reduces persisted link entries to their dependency sets,
// keyed by absolute target output path.
func ParseTargets(entries []LinkEntry) map[string]Target {
	targets := make(map[string]Target, len(entries))
	for _, e := range entries {
		out := classify.AbsJoin(e.Directory, e.Output)
		t := Target{Output: out}
		for _, o := range e.Objects {
			t.Objects = append(t.Objects, classify.AbsJoin(e.Directory, o))
		}
		for _, a := range e.Archives {
			t.Libraries = append(t.Libraries, classify.AbsJoin(e.Directory, a))
		}
		for _, s := range e.Shareds {
			t.Libraries = append(t.Libraries, classify.AbsJoin(e.Directory, s))
		}
		targets[out] = t
	}
	return targets
}

func entryArguments(args []string, command string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	split, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("failed to split command: %w", err)
	}
	return split, nil
}
