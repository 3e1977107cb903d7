// Package sched expands the compilation database into artifact-generation
// jobs and drives them either sequentially or across a bounded worker pool.
package sched

import (
	"context"
	"fmt"
	"os/exec"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"recap/pkg/cdb"
	"recap/pkg/classify"
	"recap/pkg/config"
	"recap/pkg/target"
)

// Scheduler plans and executes artifact-generation jobs over read-only
// databases. The databases are fully constructed before planning begins and
// never mutated afterwards, so jobs share them without locking.
type Scheduler struct {
	cfg *config.Config
}

// New creates a scheduler for the given configuration.
func New(cfg *config.Config) *Scheduler {
	return &Scheduler{cfg: cfg}
}

// Plan constructs the job list: one CommandJob per translation unit and
// requested artifact kind, source-copy jobs when requested, one ScopeJob per
// expanded link target when per-target output is requested, and one ScopeJob
// for the whole project. Job construction order is deterministic.
func (s *Scheduler) Plan(ctx context.Context, units map[string]cdb.Unit, targets map[string]cdb.Target) ([]Job, error) {
	if len(units) == 0 {
		return nil, nil
	}
	outputs := sortedKeys(units)

	var jobs []Job
	for _, out := range outputs {
		jobs = append(jobs, s.unitJobs(units[out])...)
	}

	if s.cfg.CopySources {
		if s.cfg.DryRun {
			log.Warnf("skipping source copies in dry-run mode, dependency scanning runs the compiler")
		} else {
			files, err := s.scanDependencies(ctx, units, outputs)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				jobs = append(jobs, &CopyJob{Source: f, Output: s.cfg.ArtifactPath(f, "")})
			}
		}
	}

	if s.cfg.PerTarget {
		g := target.New(targets)
		all, err := g.All()
		if err != nil {
			return nil, err
		}
		for _, tgt := range sortedKeys(all) {
			scope := make([]cdb.Unit, 0, len(all[tgt]))
			for _, dep := range all[tgt] {
				if u, ok := units[dep]; ok {
					scope = append(scope, u)
				}
			}
			jobs = append(jobs, &ScopeJob{
				Cfg:    s.cfg,
				Target: tgt,
				Units:  scope,
				Dir:    s.cfg.ArtifactPath(tgt, ""),
			})
		}
	}

	project := make([]cdb.Unit, 0, len(outputs))
	for _, out := range outputs {
		project = append(project, units[out])
	}
	jobs = append(jobs, &ScopeJob{Cfg: s.cfg, Units: project, Dir: s.cfg.OutputDir})
	return jobs, nil
}

// unitJobs builds one job per requested artifact kind for a translation
// unit, rewriting the output argument slot with the artifact's deterministic
// destination.
func (s *Scheduler) unitJobs(u cdb.Unit) []Job {
	base := append([]string{u.Compiler}, u.Arguments...)
	var jobs []Job
	add := func(suffix string, extra ...string) {
		out := s.cfg.ArtifactPath(u.Output, suffix)
		args := append(slices.Clone(base), extra...)
		if u.OutputIndex >= 0 {
			args[u.OutputIndex+1] = out
		}
		jobs = append(jobs, &CommandJob{Output: out, Directory: u.Directory, Arguments: args})
	}
	if s.cfg.AST {
		add(".ast", "-emit-ast")
	}
	if s.cfg.Preprocessed {
		add(s.cfg.PreExt(u.Compiler), "-E")
	}
	if s.cfg.IR {
		add(".ll", "-emit-llvm", "-S", "-Xclang", "-disable-O0-optnone")
	}
	if s.cfg.Bitcode {
		add(".bc", "-emit-llvm", "-Xclang", "-disable-O0-optnone")
	}
	return jobs
}

// scanDependencies runs each unit's compiler in dependency-scan form (the
// output flag becomes -MT, -c becomes -MM) and collects every file its
// translation unit includes, so the sources can be copied under the output
// tree.
func (s *Scheduler) scanDependencies(ctx context.Context, units map[string]cdb.Unit, outputs []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, out := range outputs {
		u := units[out]
		log.Infof("collecting dependencies for %q", u.Output)
		args := append([]string{u.Compiler}, slices.Clone(u.Arguments)...)
		if u.OutputIndex >= 0 {
			args[u.OutputIndex] = "-MT"
		}
		if i := slices.Index(args, "-c"); i >= 0 {
			args[i] = "-MM"
		}
		cmd := exec.CommandContext(ctx, args[0], args[1:]...)
		cmd.Dir = u.Directory
		stdout, err := cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("failed to scan dependencies of %s: %w", u.Output, err)
		}
		fields := strings.Fields(string(stdout))
		if len(fields) > 0 {
			// the leading field is the make-rule target
			fields = fields[1:]
		}
		for _, dep := range fields {
			if dep == "\\" {
				continue
			}
			path := classify.AbsJoin(u.Directory, dep)
			if !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
