package classify

import (
	"path/filepath"
	"regexp"
	"strings"
)

// StageEdge is the rename performed by one compiler-internal invocation: the
// original input file and the intermediate it was written to.
type StageEdge struct {
	Source string
	Dest   string
}

// stageRules recognizes one kind of internal stage: an input-name flag (or a
// positional input pattern) and an output-name flag.
type stageRules struct {
	input  *regexp.Regexp
	output *regexp.Regexp
}

var (
	stageClangExe = regexp.MustCompile(`^clang(-[\d.]+)?$`)
	stageCC1Exe   = regexp.MustCompile(`^[\w-]*cc1(plus)?(-[\d.]+)?$`)
	stageAsExe    = regexp.MustCompile(`^[\w-]*as(-[\d.]+)?$`)

	stageClang = stageRules{regexp.MustCompile(`^-main-file-name$`), regexp.MustCompile(`^-o`)}
	stageCC1   = stageRules{regexp.MustCompile(`^-dumpbase$`), regexp.MustCompile(`^-o`)}
	stageAs    = stageRules{AsmPattern, regexp.MustCompile(`^-o`)}
)

// ClassifyStage recognizes compiler-internal code generation and assembly
// invocations (clang -cc1, cc1/cc1plus, as) and extracts the single
// input/output file pair they rename. Everything else about the invocation is
// discarded. The boolean result is false when the vector is not an internal
// stage or does not name both files.
func ClassifyStage(argv []string, dir string) (StageEdge, bool) {
	if len(argv) == 0 {
		return StageEdge{}, false
	}
	base := filepath.Base(argv[0])
	args := argv[1:]
	var rules *stageRules
	switch {
	case stageClangExe.MatchString(base):
		if len(args) == 0 || args[0] != "-cc1" {
			return StageEdge{}, false
		}
		rules = &stageClang
		args = args[1:]
	case stageCC1Exe.MatchString(base):
		rules = &stageCC1
	case stageAsExe.MatchString(base):
		rules = &stageAs
	default:
		return StageEdge{}, false
	}

	var in, out string
	for i := 0; i < len(args); i++ {
		if v, n, ok := stageFile(rules.input, args, i); ok {
			in = v
			i += n
			continue
		}
		if v, n, ok := stageFile(rules.output, args, i); ok {
			out = v
			i += n
		}
	}
	if in == "" || out == "" {
		return StageEdge{}, false
	}
	return StageEdge{Source: AbsJoin(dir, in), Dest: AbsJoin(dir, out)}, true
}

// stageFile extracts the file named by args[i] under a stage pattern: a glued
// value, the token following a flag, or the matched token itself when the
// pattern is positional.
func stageFile(p *regexp.Regexp, args []string, i int) (string, int, bool) {
	loc := p.FindStringIndex(args[i])
	if loc == nil || loc[0] != 0 {
		return "", 0, false
	}
	matched := args[i][:loc[1]]
	if loc[1] != len(args[i]) && strings.HasPrefix(matched, "-") {
		return args[i][loc[1]:], 0, true
	}
	if strings.HasPrefix(matched, "-") {
		if i+1 >= len(args) {
			return "", 0, false
		}
		return args[i+1], 1, true
	}
	return matched, 0, true
}
