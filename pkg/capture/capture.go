// Package capture wraps a build command with the process-interception shim
// and reconstructs the compilation and linking databases from the execution
// records the shim leaves behind.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"recap/pkg/alias"
	"recap/pkg/cdb"
	"recap/pkg/classify"
	"recap/pkg/config"
)

// ShimDirEnv tells the interception shim where to write execution records.
const ShimDirEnv = "RECAP_OUTPUT_DIR"

// Record is one process launch logged by the interception shim.
type Record struct {
	Method    string   `json:"method"`
	PPID      int      `json:"ppid"`
	PID       int      `json:"pid"`
	Directory string   `json:"pwd"`
	Arguments []string `json:"arguments"`
}

// Run executes the build command under the shim and reconstructs the
// databases from the capture. The compilation and linking databases land in
// the output root; the name mapping stays with the capture directory.
func Run(ctx context.Context, cfg *config.Config, command []string) ([]cdb.CompileEntry, []cdb.LinkEntry, error) {
	dir, err := build(ctx, cfg, command)
	if err != nil {
		return nil, nil, err
	}
	return Reconstruct(cfg, dir)
}

// build runs the user-supplied command with the shim preloaded, records
// landing in a timestamped capture directory under the output root. The
// build's own exit status is not interpreted; whatever it managed to launch
// has been recorded.
func build(ctx context.Context, cfg *config.Config, command []string) (string, error) {
	dir := filepath.Join(cfg.OutputDir, time.Now().Format("20060102_150405")+".build")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create capture directory: %w", err)
	}
	log.Infof("compiling the project: %s (session %s)", strings.Join(command, " "), uuid.NewString())
	if cfg.Verbose {
		log.Debugf("capture directory %q, shim %q", dir, cfg.ShimPath)
	}
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Env = append(os.Environ(), "LD_PRELOAD="+cfg.ShimPath, ShimDirEnv+"="+dir)
	cmd.Dir = cfg.WorkingDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		log.Warnf("build command finished with error: %v", err)
	}
	return dir, nil
}

// Reconstruct classifies every record in the capture directory, resolves the
// collected alias edges, and writes the three database files. Records are
// visited in directory-walk order; classification itself is order
// independent, only the alias edges must all be collected before resolution.
func Reconstruct(cfg *config.Config, dir string) ([]cdb.CompileEntry, []cdb.LinkEntry, error) {
	log.Infof("generating %q and %q", "compile_commands.json", "link_commands.json")

	var compiles []*classify.Compile
	var links []*classify.Link
	edges := alias.NewCollector()

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rec, err := readRecord(path)
		if err != nil {
			log.Warnf("skipping unreadable record %s: %v", path, err)
			return nil
		}
		if c := classify.ClassifyCompile(rec.Arguments, rec.Directory); c != nil && len(c.Files) > 0 {
			compiles = append(compiles, c)
			return nil
		}
		if a := classify.ClassifyArchive(rec.Arguments, rec.Directory); a != nil && len(a.Files) > 0 {
			links = append(links, a)
			edges.Assign(a.Output, a.Files)
			return nil
		}
		if l := classify.ClassifyLink(rec.Arguments, rec.Directory); l != nil && len(l.Files) > 0 {
			links = append(links, l)
			edges.Assign(l.Output, l.Files)
			return nil
		}
		if e, ok := classify.ClassifyStage(rec.Arguments, rec.Directory); ok {
			edges.Append(e.Source, e.Dest)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to traverse capture directory: %w", err)
	}

	am := edges.Simplify()
	compilation := cdb.BuildCompilation(compiles, am)
	linking := cdb.BuildLinking(links, am)

	if err := cdb.WriteCompilation(filepath.Join(cfg.OutputDir, "compile_commands.json"), compilation); err != nil {
		return nil, nil, err
	}
	if err := cdb.WriteLinking(filepath.Join(cfg.OutputDir, "link_commands.json"), linking); err != nil {
		return nil, nil, err
	}
	if err := cdb.WriteJSON(filepath.Join(dir, "name_mapping.json"), am); err != nil {
		return nil, nil, err
	}
	return compilation, linking, nil
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
