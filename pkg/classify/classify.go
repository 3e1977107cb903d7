package classify

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ScratchPrefix is the directory where toolchain stages place intermediate
// files that are not meant to outlive the build.
const ScratchPrefix = "/tmp/"

// Param describes a flag that consumes the flag token itself plus Count
// following tokens. A value glued to the flag (for example "-ofoo") counts
// against Count.
type Param struct {
	Matcher *regexp.Regexp
	Count   int
}

// RuleSet configures the classifier for one tool profile.
type RuleSet struct {
	// Executables are matched against the base name of argv[0]. The patterns
	// are anchored, so a match is a full match.
	Executables []*regexp.Regexp

	// Tools optionally substitutes the executable of a matched descriptor:
	// when non-empty, the descriptor's tool is Tools[i] where i is the index
	// of the matching executable pattern.
	Tools []string

	// Abort tokens mark compiler-internal invocation stages (preprocess-only,
	// dependency scans, syntax checks). Matching any of them discards the
	// whole descriptor.
	Abort []string

	// Remove patterns strip flags that carry no database-relevant
	// information, together with the tokens they bind.
	Remove []Param

	// Output is the flag that names the output file. Nil when the profile
	// uses a positional output instead.
	Output *Param

	// PositionalOutput recognizes the output as the first bare token matching
	// this pattern (archiver style).
	PositionalOutput *regexp.Regexp

	// Source recognizes tracked input files by base name. A candidate is only
	// tracked when its resolved path exists on disk or lies under the scratch
	// area.
	Source *regexp.Regexp
}

// Descriptor is the normalized classification result for one argument vector.
type Descriptor struct {
	Tool        string
	Directory   string
	Files       []string
	Arguments   []string
	Output      string
	OutputIndex int // index of the output path in Arguments, -1 if none
}

// Classify scans an argument vector (argv[0] is the executable) and produces
// a normalized descriptor, or nil when the vector is not of interest to this
// rule set. Removed and aborted tokens vanish; everything else keeps its
// original relative order. Malformed tokens are passed through unchanged.
func (r *RuleSet) Classify(argv []string, dir string) *Descriptor {
	if len(argv) == 0 {
		return nil
	}
	ei := r.matchExecutable(argv[0])
	if ei < 0 {
		return nil
	}
	tool := argv[0]
	if len(r.Tools) > 0 {
		tool = r.Tools[ei]
	}

	d := &Descriptor{Tool: tool, Directory: dir, OutputIndex: -1}
	args := argv[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if r.isAbort(arg) {
			return nil
		}
		if n, ok := r.matchRemove(arg, args[i+1:]); ok {
			i += n
			continue
		}
		if r.Output != nil {
			if toks, n, ok := matchParam(r.Output, arg, args[i+1:]); ok {
				i += n
				d.Output = AbsJoin(dir, toks[len(toks)-1])
				d.Arguments = append(d.Arguments, toks[:len(toks)-1]...)
				d.OutputIndex = len(d.Arguments)
				d.Arguments = append(d.Arguments, d.Output)
				continue
			}
		}
		if r.PositionalOutput != nil && d.Output == "" && r.PositionalOutput.MatchString(arg) {
			d.Output = AbsJoin(dir, arg)
			d.OutputIndex = len(d.Arguments)
			d.Arguments = append(d.Arguments, d.Output)
			continue
		}
		if r.Source != nil {
			if src, ok := r.matchSource(arg, dir); ok {
				d.Files = append(d.Files, src)
				d.Arguments = append(d.Arguments, src)
				continue
			}
		}
		d.Arguments = append(d.Arguments, arg)
	}
	return d
}

func (r *RuleSet) matchExecutable(exe string) int {
	base := filepath.Base(exe)
	for i, p := range r.Executables {
		if p.MatchString(base) {
			return i
		}
	}
	return -1
}

func (r *RuleSet) isAbort(arg string) bool {
	for _, a := range r.Abort {
		if arg == a {
			return true
		}
	}
	return false
}

func (r *RuleSet) matchRemove(arg string, rest []string) (int, bool) {
	for i := range r.Remove {
		if _, n, ok := matchParam(&r.Remove[i], arg, rest); ok {
			return n, true
		}
	}
	return 0, false
}

func (r *RuleSet) matchSource(arg, dir string) (string, bool) {
	path := AbsJoin(dir, arg)
	if !r.Source.MatchString(filepath.Base(path)) {
		return "", false
	}
	if strings.HasPrefix(path, ScratchPrefix) {
		return path, true
	}
	if _, err := os.Stat(path); err == nil {
		return path, true
	}
	return "", false
}

// matchParam matches arg against a flag pattern and collects the tokens the
// flag binds. The returned tokens are the flag itself, the glued value if
// any, and up to Count following tokens taken from rest. consumed is the
// number of tokens pulled from rest. A flag whose trailing tokens are missing
// is not a match; the caller passes it through as an ordinary argument.
func matchParam(p *Param, arg string, rest []string) (toks []string, consumed int, ok bool) {
	loc := p.Matcher.FindStringIndex(arg)
	if loc == nil || loc[0] != 0 {
		return nil, 0, false
	}
	count := p.Count
	toks = []string{arg[:loc[1]]}
	if loc[1] != len(arg) {
		toks = append(toks, arg[loc[1]:])
		count--
	}
	if count > len(rest) {
		return nil, 0, false
	}
	for j := 0; j < count; j++ {
		toks = append(toks, rest[j])
		consumed++
	}
	return toks, consumed, true
}

// AbsJoin resolves path against dir unless it is already absolute.
func AbsJoin(dir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, path)
}
