// Package config carries the explicit configuration value threaded through
// every component: tool paths, database locations, requested artifact kinds,
// and the parallelism budget. Nothing in here is process-global.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// pathTreeRoot is the subdirectory of the output root under which every
// derivative artifact mirrors its translation unit's absolute path.
const pathTreeRoot = "preprocess-root"

// DefaultShimName is the interception shim library expected next to the
// executable when --shim is not given.
const DefaultShimName = "librecap.so"

// Config is the resolved run configuration.
type Config struct {
	// Toolchain executables.
	CC         string
	CXX        string
	FuncMapper string
	// ClangPath, when set, is joined with relative tool names above.
	ClangPath string

	// FuncMapName is the file name of the external function mapping listing.
	FuncMapName string

	OutputDir   string
	CompilingDB string
	LinkingDB   string
	// WorkingDir is the directory the run was started from; relative
	// database paths and the function mapper's project root resolve here.
	WorkingDir string
	// ShimPath is the interception shim preloaded into build processes.
	ShimPath string

	Jobs    int
	Verbose bool
	DryRun  bool

	// Requested derivative artifact kinds.
	AST          bool
	Preprocessed bool
	IR           bool
	Bitcode      bool

	FuncMap     bool
	Lists       bool
	CopySources bool
	PerTarget   bool
}

// Resolve normalizes paths and applies the clang search directory to the
// configured tool names. Tool names given as absolute paths win over
// ClangPath.
func (c *Config) Resolve() error {
	if c.WorkingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		c.WorkingDir = wd
	}
	c.OutputDir = absJoin(c.WorkingDir, c.OutputDir)
	c.CompilingDB = absJoin(c.WorkingDir, c.CompilingDB)
	c.LinkingDB = absJoin(c.WorkingDir, c.LinkingDB)
	if c.ClangPath != "" {
		c.CC = absJoin(c.WorkingDir, absJoin(c.ClangPath, c.CC))
		c.CXX = absJoin(c.WorkingDir, absJoin(c.ClangPath, c.CXX))
		c.FuncMapper = absJoin(c.WorkingDir, absJoin(c.ClangPath, c.FuncMapper))
	}
	if c.ShimPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate executable: %w", err)
		}
		c.ShimPath = filepath.Join(filepath.Dir(exe), DefaultShimName)
	}
	return nil
}

// NeedsOutput reports whether any requested mode writes under the output
// root.
func (c *Config) NeedsOutput() bool {
	return c.AST || c.Preprocessed || c.IR || c.Bitcode ||
		c.FuncMap || c.Lists || c.CopySources || c.PerTarget
}

// CheckTools verifies that the executables the requested artifact kinds
// depend on can actually be launched, before any job is scheduled. Only
// command-not-found is fatal; a tool's probe exiting non-zero is fine.
func (c *Config) CheckTools() error {
	if c.FuncMap {
		if err := checkTool(c.FuncMapper, "--cfm"); err != nil {
			return err
		}
	}
	if c.AST || c.Preprocessed || c.IR || c.Bitcode {
		if err := checkTool(c.CC, "--cc"); err != nil {
			return err
		}
		if err := checkTool(c.CXX, "--cxx"); err != nil {
			return err
		}
	}
	return nil
}

func checkTool(tool, flag string) error {
	cmd := exec.Command(tool, "--version")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	err := cmd.Run()
	var exitErr *exec.ExitError
	if err == nil || errors.As(err, &exitErr) {
		return nil
	}
	return fmt.Errorf("required tool %q not available, check your settings of %q or --clang-path: %w",
		filepath.Base(tool), flag, err)
}

// ArtifactPath derives the deterministic destination of one derivative
// artifact: the original absolute path rooted under the output tree, with a
// kind-specific suffix.
func (c *Config) ArtifactPath(original, suffix string) string {
	return filepath.Join(c.OutputDir, pathTreeRoot, original+suffix)
}

// PreExt is the preprocessed-source extension for the given compiler: .i for
// the configured C compiler, .ii otherwise.
func (c *Config) PreExt(compiler string) string {
	if compiler == c.CC {
		return ".i"
	}
	return ".ii"
}

func absJoin(dir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, path)
}
