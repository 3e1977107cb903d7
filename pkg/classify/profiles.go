package classify

import (
	"regexp"
	"slices"
)

// Compile is a classified compiler driver invocation.
type Compile struct {
	Compiler    string
	Directory   string
	Files       []string
	Arguments   []string
	Output      string
	OutputIndex int
	// CompileOnly is true when a -c token survives in the reconstructed
	// arguments, i.e. the invocation did not also link.
	CompileOnly bool
}

// Link is a classified linker or archiver invocation.
type Link struct {
	Linker      string
	Directory   string
	Files       []string
	Arguments   []string
	Output      string
	OutputIndex int
	Archive     bool
}

// CompilerAbort lists tokens that mark a compiler invocation as an
// internal-only stage: preprocess-only, cc1 stages, dependency scans, dry
// runs, and syntax checks. Such invocations never become database entries.
var CompilerAbort = []string{"-E", "-cc1", "-cc1as", "-M", "-MM", "-###", "-fsyntax-only"}

// CompilerRemove strips library search flags, dependency file flags, linker
// passthrough flags, and warning flags from compiler argument vectors.
var CompilerRemove = []Param{
	{regexp.MustCompile(`^-[lL]`), 1},
	{regexp.MustCompile(`^-M[TF]$`), 1},
	{regexp.MustCompile(`^-(Wl,|shared|static)`), 0},
	{regexp.MustCompile(`^-(v|Werror(=.+)?|Wall|Wextra|M[DGMPQ]*|)$`), 0},
}

// OutputFlag is the -o flag shared by the compiler and linker profiles. The
// value may be glued or follow as the next token.
var OutputFlag = Param{regexp.MustCompile(`^-o`), 1}

var (
	compilerRules = &RuleSet{
		Executables: []*regexp.Regexp{
			regexp.MustCompile(`^([\w-]*g?cc|[\w-]*[gc]\+\+|clang(\+\+)?)(-[\d.]+)?$`),
		},
		Abort:  CompilerAbort,
		Remove: CompilerRemove,
		Output: &OutputFlag,
		Source: SourcePattern,
	}

	archiverRules = &RuleSet{
		Executables:      []*regexp.Regexp{regexp.MustCompile(`^[\w-]*ar(-[\d.]+)?$`)},
		PositionalOutput: ArchivePattern,
		Source:           ObjectPattern,
	}

	linkerRules = &RuleSet{
		Executables: []*regexp.Regexp{regexp.MustCompile(`^[\w-]*ld(-[\d.]+)?$`)},
		Output:      &OutputFlag,
		Source:      LinkInputPattern,
	}
)

// ClassifyCompile matches an argument vector against the compiler driver
// profile. Returns nil for foreign executables and aborted invocations.
func ClassifyCompile(argv []string, dir string) *Compile {
	d := compilerRules.Classify(argv, dir)
	if d == nil {
		return nil
	}
	return &Compile{
		Compiler:    d.Tool,
		Directory:   d.Directory,
		Files:       d.Files,
		Arguments:   d.Arguments,
		Output:      d.Output,
		OutputIndex: d.OutputIndex,
		CompileOnly: slices.Contains(d.Arguments, "-c"),
	}
}

// ClassifyArchive matches an argument vector against the archiver profile.
func ClassifyArchive(argv []string, dir string) *Link {
	return classifyLink(archiverRules, argv, dir, true)
}

// ClassifyLink matches an argument vector against the linker profile.
func ClassifyLink(argv []string, dir string) *Link {
	return classifyLink(linkerRules, argv, dir, false)
}

func classifyLink(rules *RuleSet, argv []string, dir string, archive bool) *Link {
	d := rules.Classify(argv, dir)
	if d == nil {
		return nil
	}
	return &Link{
		Linker:      d.Tool,
		Directory:   d.Directory,
		Files:       d.Files,
		Arguments:   d.Arguments,
		Output:      d.Output,
		OutputIndex: d.OutputIndex,
		Archive:     archive,
	}
}
