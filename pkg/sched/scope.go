package sched

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"recap/pkg/cdb"
	"recap/pkg/config"
)

// ScopeJob produces the files that describe a whole scope rather than one
// translation unit: a scoped compilation database (per-target scopes only),
// the external function mapping listing, and the plain-text index files. It
// reads the compilation database but no artifact output, so it schedules
// independently of the per-unit jobs.
type ScopeJob struct {
	Cfg *config.Config
	// Target is the link target the scope belongs to; empty for the whole
	// project.
	Target string
	Units  []cdb.Unit
	// Dir is where the scope's files are written.
	Dir string
}

// Destination returns the scope's output directory.
func (j *ScopeJob) Destination() string { return j.Dir }

// Render returns a description of the scope for dry runs.
func (j *ScopeJob) Render() string {
	scope := "the project"
	if j.Target != "" {
		scope = fmt.Sprintf("target %q", j.Target)
	}
	return fmt.Sprintf("generate scope files for %s under %s", scope, j.Dir)
}

// Run writes the scope's files. Failures are local to this scope.
func (j *ScopeJob) Run(ctx context.Context) error {
	if j.Target != "" {
		log.Infof("generating %q for target %q", "compile_commands.json", j.Target)
		if err := os.MkdirAll(j.Dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", j.Target, err)
		}
		entries := make([]cdb.CompileEntry, 0, len(j.Units))
		for _, u := range j.Units {
			entries = append(entries, u.Entry)
		}
		if err := cdb.WriteCompilation(filepath.Join(j.Dir, "compile_commands.json"), entries); err != nil {
			return err
		}
	}
	srcs := j.sources()
	if j.Cfg.FuncMap {
		if err := j.writeFunctionMap(ctx, srcs); err != nil {
			return err
		}
	}
	if j.Cfg.Lists {
		if err := j.writeIndexes(srcs); err != nil {
			return err
		}
	}
	return nil
}

// sources is the sorted union of tracked files across the scope's units.
func (j *ScopeJob) sources() []string {
	seen := make(map[string]bool)
	var srcs []string
	for _, u := range j.Units {
		for _, f := range u.Files {
			if !seen[f] {
				seen[f] = true
				srcs = append(srcs, f)
			}
		}
	}
	sort.Strings(srcs)
	return srcs
}

// writeFunctionMap runs the function mapping scanner over the scope's
// sources and pairs each external function with the AST artifact its
// translation unit will produce.
func (j *ScopeJob) writeFunctionMap(ctx context.Context, srcs []string) error {
	log.Infof("generating function mapping list under %q", j.Dir)
	args := append([]string{j.Cfg.FuncMapper, "-p", j.Cfg.WorkingDir}, srcs...)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = j.Dir
	out, err := cmd.Output()
	if err != nil && len(out) == 0 {
		return fmt.Errorf("failed to run function mapping scanner: %w", err)
	}
	f, err := os.Create(filepath.Join(j.Dir, j.Cfg.FuncMapName))
	if err != nil {
		return fmt.Errorf("failed to write function mapping list: %w", err)
	}
	defer f.Close()
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		fmt.Fprintln(f, fields[0], j.Cfg.ArtifactPath(fields[1], ".ast"))
	}
	return f.Close()
}

// writeIndexes writes source-index.txt plus one index per requested artifact
// kind, each listing the deterministic artifact paths of the scope's units.
func (j *ScopeJob) writeIndexes(srcs []string) error {
	log.Infof("generating file lists under %q", j.Dir)
	if err := writeLines(filepath.Join(j.Dir, "source-index.txt"), srcs); err != nil {
		return err
	}
	write := func(enabled bool, name string, path func(cdb.Unit) string) error {
		if !enabled {
			return nil
		}
		lines := make([]string, 0, len(j.Units))
		for _, u := range j.Units {
			lines = append(lines, path(u))
		}
		return writeLines(filepath.Join(j.Dir, name), lines)
	}
	if err := write(j.Cfg.AST, "ast-index.txt", func(u cdb.Unit) string {
		return j.Cfg.ArtifactPath(u.Output, ".ast")
	}); err != nil {
		return err
	}
	if err := write(j.Cfg.Preprocessed, "i-index.txt", func(u cdb.Unit) string {
		return j.Cfg.ArtifactPath(u.Output, j.Cfg.PreExt(u.Compiler))
	}); err != nil {
		return err
	}
	if err := write(j.Cfg.IR, "ll-index.txt", func(u cdb.Unit) string {
		return j.Cfg.ArtifactPath(u.Output, ".ll")
	}); err != nil {
		return err
	}
	return write(j.Cfg.Bitcode, "bc-index.txt", func(u cdb.Unit) string {
		return j.Cfg.ArtifactPath(u.Output, ".bc")
	})
}

func writeLines(path string, lines []string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
