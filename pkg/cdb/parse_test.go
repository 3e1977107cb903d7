package cdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("int main() { return 0; }\n"), 0o644))
	return path
}

func TestParseUnitsCommandString(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "src.c")
	out := filepath.Join(dir, "src.o")

	units, err := ParseUnits([]CompileEntry{{
		Directory: dir,
		File:      "src.c",
		Command:   "cc -c -O2 src.c -o src.o",
	}}, "clang", "clang++")
	require.NoError(t, err)
	require.Len(t, units, 1)

	u, ok := units[out]
	require.True(t, ok)
	assert.Equal(t, "clang", u.Compiler)
	assert.Equal(t, dir, u.Directory)
	assert.Equal(t, []string{src}, u.Files)
	assert.Equal(t, []string{"-c", src, "-o", out, "-w", "-g", "-O0"}, u.Arguments)
	assert.Equal(t, 3, u.OutputIndex)
	assert.Equal(t, out, u.Output)

	// the entry is normalized for re-emission into scoped databases
	assert.Equal(t, src, u.Entry.File)
	assert.Equal(t, []string{"cc", "-c", "-O2", "src.c", "-o", "src.o"}, u.Entry.Arguments)
	assert.Empty(t, u.Entry.Command)
}

func TestParseUnitsImplicitLinkRename(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "main.cpp")
	out := src + "." + dir[len(dir)-1:] + ".app.o"

	units, err := ParseUnits([]CompileEntry{{
		Directory: dir,
		File:      "main.cpp",
		Arguments: []string{"g++", "main.cpp", "-o", "app"},
	}}, "clang", "clang++")
	require.NoError(t, err)
	require.Len(t, units, 1)

	u, ok := units[out]
	require.True(t, ok)
	assert.Equal(t, "clang++", u.Compiler)
	assert.Equal(t, []string{"-c", src, "-o", out, "-w", "-g", "-O0"}, u.Arguments)
	assert.Equal(t, 3, u.OutputIndex)
}

func TestParseUnitsDefaultOutput(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "a.c")

	units, err := ParseUnits([]CompileEntry{{
		Directory: dir,
		File:      "a.c",
		Arguments: []string{"gcc", "-c", "a.c"},
	}}, "clang", "clang++")
	require.NoError(t, err)

	u, ok := units[src+".o"]
	require.True(t, ok)
	assert.Equal(t, src+".o", u.Output)
	assert.Equal(t, -1, u.OutputIndex)
}

func TestParseUnitsSkipsPreprocessEntries(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.c")

	units, err := ParseUnits([]CompileEntry{{
		Directory: dir,
		File:      "a.c",
		Arguments: []string{"gcc", "-E", "a.c"},
	}}, "clang", "clang++")
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestParseUnitsStripsDiagnosticFlags(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "a.c")

	units, err := ParseUnits([]CompileEntry{{
		Directory: dir,
		File:      "a.c",
		Arguments: []string{"cc", "-c", "-O3", "-g", "-w", "-Ofast", "a.c", "-o", "a.o"},
	}}, "clang", "clang++")
	require.NoError(t, err)

	u, ok := units[filepath.Join(dir, "a.o")]
	require.True(t, ok)
	assert.Equal(t, []string{"-c", src, "-o", filepath.Join(dir, "a.o"), "-w", "-g", "-O0"}, u.Arguments)
}

func TestParseTargets(t *testing.T) {
	targets := ParseTargets([]LinkEntry{{
		Output:    "app",
		Directory: "/w",
		Objects:   []string{"/w/a.o", "b.o"},
		Archives:  []string{"libx.a"},
		Shareds:   []string{"/usr/lib/libz.so"},
	}})
	require.Len(t, targets, 1)

	tgt, ok := targets["/w/app"]
	require.True(t, ok)
	assert.Equal(t, "/w/app", tgt.Output)
	assert.Equal(t, []string{"/w/a.o", "/w/b.o"}, tgt.Objects)
	assert.Equal(t, []string{"/w/libx.a", "/usr/lib/libz.so"}, tgt.Libraries)
}
