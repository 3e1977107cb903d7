package capture

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recap/pkg/config"
)

func writeRecord(t *testing.T, dir, name string, rec Record) {
	t.Helper()
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

// TestReconstructToolchain replays the records of one clang invocation that
// compiles foo.c through scratch intermediates and links the result, and
// checks that the databases come out with the stable object name.
func TestReconstructToolchain(t *testing.T) {
	wd := t.TempDir()
	capDir := t.TempDir()
	outDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(wd, "foo.c"), []byte("int main() { return 0; }\n"), 0o644))

	writeRecord(t, capDir, "01.json", Record{
		Method: "execve", PPID: 1, PID: 10, Directory: wd,
		Arguments: []string{"clang", "foo.c", "-o", "foo"},
	})
	writeRecord(t, capDir, "02.json", Record{
		Method: "execve", PPID: 10, PID: 11, Directory: wd,
		Arguments: []string{"clang", "-cc1", "-triple", "x86_64", "-main-file-name", "foo.c", "-o", "/tmp/foo-xyz.s", "foo.c"},
	})
	writeRecord(t, capDir, "03.json", Record{
		Method: "execve", PPID: 10, PID: 12, Directory: wd,
		Arguments: []string{"as", "--64", "-o", "/tmp/foo-xyz.o", "/tmp/foo-xyz.s"},
	})
	writeRecord(t, capDir, "04.json", Record{
		Method: "execve", PPID: 10, PID: 13, Directory: wd,
		Arguments: []string{"ld", "-o", "foo", "/tmp/foo-xyz.o", "-lc"},
	})

	cfg := &config.Config{OutputDir: outDir, WorkingDir: wd}
	compilation, linking, err := Reconstruct(cfg, capDir)
	require.NoError(t, err)

	src := filepath.Join(wd, "foo.c")
	stable := src + ".foo-xyz.o"

	require.Len(t, compilation, 1)
	assert.Equal(t, src, compilation[0].File)
	assert.Equal(t, wd, compilation[0].Directory)
	assert.Equal(t, stable, compilation[0].Output)
	assert.Equal(t, []string{"clang", "-c", src, "-o", stable}, compilation[0].Arguments)

	require.Len(t, linking, 1)
	assert.Equal(t, filepath.Join(wd, "foo"), linking[0].Output)
	assert.Equal(t, []string{stable}, linking[0].Objects)
	assert.Equal(t, []string{"ld", "-o", filepath.Join(wd, "foo"), stable, "-lc"}, linking[0].Arguments)

	assert.FileExists(t, filepath.Join(outDir, "compile_commands.json"))
	assert.FileExists(t, filepath.Join(outDir, "link_commands.json"))
	assert.FileExists(t, filepath.Join(capDir, "name_mapping.json"))
}

func TestReconstructArchive(t *testing.T) {
	wd := t.TempDir()
	capDir := t.TempDir()
	outDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(wd, "a.c"), []byte("int a;\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(wd, "a.o"), []byte("\n"), 0o644))

	writeRecord(t, capDir, "01.json", Record{
		Method: "execve", PPID: 1, PID: 10, Directory: wd,
		Arguments: []string{"gcc", "-c", "a.c", "-o", "a.o"},
	})
	writeRecord(t, capDir, "02.json", Record{
		Method: "execve", PPID: 10, PID: 11, Directory: wd,
		Arguments: []string{"cc1", "-quiet", "a.c", "-dumpbase", "a.c", "-o", "/tmp/ccA.s"},
	})
	writeRecord(t, capDir, "03.json", Record{
		Method: "execve", PPID: 10, PID: 12, Directory: wd,
		Arguments: []string{"as", "-o", "a.o", "/tmp/ccA.s"},
	})
	writeRecord(t, capDir, "04.json", Record{
		Method: "execve", PPID: 1, PID: 13, Directory: wd,
		Arguments: []string{"ar", "rcs", "libfoo.a", "a.o"},
	})

	cfg := &config.Config{OutputDir: outDir, WorkingDir: wd}
	compilation, linking, err := Reconstruct(cfg, capDir)
	require.NoError(t, err)

	obj := filepath.Join(wd, "a.o")
	require.Len(t, compilation, 1)
	assert.Equal(t, obj, compilation[0].Output)

	require.Len(t, linking, 1)
	assert.Equal(t, filepath.Join(wd, "libfoo.a"), linking[0].Output)
	assert.Equal(t, []string{obj}, linking[0].Objects)
}

func TestReconstructSkipsUnreadableRecords(t *testing.T) {
	wd := t.TempDir()
	capDir := t.TempDir()
	outDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(capDir, "junk.json"), []byte("not json"), 0o644))

	cfg := &config.Config{OutputDir: outDir, WorkingDir: wd}
	compilation, linking, err := Reconstruct(cfg, capDir)
	require.NoError(t, err)
	assert.Empty(t, compilation)
	assert.Empty(t, linking)
}
