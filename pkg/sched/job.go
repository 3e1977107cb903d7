package sched

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Job is one unit of scheduled artifact-generation work. Jobs are idempotent
// by destination: running the same job twice overwrites rather than
// duplicates, so re-runs are safe.
type Job interface {
	// Destination is the file or directory the job produces.
	Destination() string

	// Render returns the job's shell-equivalent form for dry runs.
	Render() string

	// Run executes the job. A failure is local to the job and must not
	// affect siblings.
	Run(ctx context.Context) error
}

// CommandJob launches one subprocess whose output lands at a deterministic
// destination.
type CommandJob struct {
	Output    string
	Directory string
	Arguments []string
}

// Destination returns the output file path.
func (j *CommandJob) Destination() string { return j.Output }

// Render returns the shell-equivalent invocation.
func (j *CommandJob) Render() string {
	return fmt.Sprintf("cd %s && %s", j.Directory, strings.Join(j.Arguments, " "))
}

// Run creates the destination directory and executes the subprocess in the
// job's working directory. Another job creating the same directory
// concurrently is not an error.
func (j *CommandJob) Run(ctx context.Context) error {
	log.Infof("generating %q", j.Output)
	if err := os.MkdirAll(filepath.Dir(j.Output), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", j.Output, err)
	}
	cmd := exec.CommandContext(ctx, j.Arguments[0], j.Arguments[1:]...)
	cmd.Dir = j.Directory
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to generate %s: %w", j.Output, err)
	}
	return nil
}

// CopyJob copies one project source file under the output tree.
type CopyJob struct {
	Source string
	Output string
}

// Destination returns the copied file's path under the output tree.
func (j *CopyJob) Destination() string { return j.Output }

// Render returns the shell-equivalent invocation.
func (j *CopyJob) Render() string {
	return fmt.Sprintf("cp %s %s", j.Source, j.Output)
}

// Run copies the source file, creating the destination directory first.
func (j *CopyJob) Run(ctx context.Context) error {
	log.Infof("generating %q", j.Output)
	if err := os.MkdirAll(filepath.Dir(j.Output), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", j.Output, err)
	}
	in, err := os.Open(j.Source)
	if err != nil {
		return fmt.Errorf("failed to copy %s: %w", j.Source, err)
	}
	defer in.Close()
	out, err := os.Create(j.Output)
	if err != nil {
		return fmt.Errorf("failed to copy to %s: %w", j.Output, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy to %s: %w", j.Output, err)
	}
	return out.Close()
}
