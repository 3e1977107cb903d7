package classify

import "regexp"

// File name patterns shared by the tool profiles and the alias resolver. All
// of them reject tokens that look like flags.
var (
	// SourcePattern matches compilable C/C++ source and preprocessed files.
	SourcePattern = regexp.MustCompile(`^[^-].*\.(c|C|cc|CC|cxx|cpp|c\+\+|i|ii|ixx|ipp|i\+\+)$`)

	// AsmPattern matches assembler inputs produced by code generation stages.
	AsmPattern = regexp.MustCompile(`^[^-].*\.(s|S|sx|asm)$`)

	// ObjectPattern matches relocatable object files.
	ObjectPattern = regexp.MustCompile(`^[^-].*\.(o|obj)$`)

	// SharedPattern matches shared libraries.
	SharedPattern = regexp.MustCompile(`^[^-].*\.(so([\d.]+)?|dll)$`)

	// ArchivePattern matches static archives.
	ArchivePattern = regexp.MustCompile(`^[^-].*\.(a|lib)$`)

	// LinkInputPattern matches anything a linker consumes.
	LinkInputPattern = regexp.MustCompile(`^[^-].*\.(o|obj|so([\d.]+)?|dll|a|lib)$`)
)
