package cdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recap/pkg/alias"
	"recap/pkg/classify"
)

// toolchainMap reproduces the simplified alias map of one clang invocation
// that compiled foo.c through scratch intermediates and linked the result.
func toolchainMap() *alias.Map {
	c := alias.NewCollector()
	c.Append("/w/foo.c", "/tmp/foo-xyz.s")
	c.Append("/tmp/foo-xyz.s", "/tmp/foo-xyz.o")
	c.Assign("/w/foo", []string{"/tmp/foo-xyz.o"})
	return c.Simplify()
}

func TestBuildCompilationResolvesFinalName(t *testing.T) {
	cmd := &classify.Compile{
		Compiler:    "clang",
		Directory:   "/w",
		Files:       []string{"/w/foo.c"},
		Arguments:   []string{"/w/foo.c", "-o", "/w/foo"},
		Output:      "/w/foo",
		OutputIndex: 2,
	}
	entries := BuildCompilation([]*classify.Compile{cmd}, toolchainMap())
	require.Len(t, entries, 1)
	assert.Equal(t, CompileEntry{
		Directory: "/w",
		File:      "/w/foo.c",
		Arguments: []string{"clang", "-c", "/w/foo.c", "-o", "/w/foo.c.foo-xyz.o"},
		Output:    "/w/foo.c.foo-xyz.o",
	}, entries[0])
}

func TestBuildCompilationSiblingRemoval(t *testing.T) {
	cmd := &classify.Compile{
		Compiler:    "gcc",
		Directory:   "/w",
		Files:       []string{"/w/a.c", "/w/b.c"},
		Arguments:   []string{"-c", "/w/a.c", "/w/b.c"},
		OutputIndex: -1,
		CompileOnly: true,
	}
	entries := BuildCompilation([]*classify.Compile{cmd}, alias.NewCollector().Simplify())
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"gcc", "-c", "/w/a.c"}, entries[0].Arguments)
	assert.Equal(t, "/w/a.c", entries[0].File)
	assert.Equal(t, []string{"gcc", "-c", "/w/b.c"}, entries[1].Arguments)
	assert.Equal(t, "/w/b.c", entries[1].File)
}

func TestBuildCompilationAmbiguousKeepsDeclared(t *testing.T) {
	// the declared output was observed, but none of its candidates resolve
	// into this file's own chain
	c := alias.NewCollector()
	c.Assign("/w/out", []string{"/tmp/q.o"})
	cmd := &classify.Compile{
		Compiler:    "clang",
		Directory:   "/w",
		Files:       []string{"/w/a.c"},
		Arguments:   []string{"-c", "/w/a.c", "-o", "/w/out"},
		Output:      "/w/out",
		OutputIndex: 3,
		CompileOnly: true,
	}
	entries := BuildCompilation([]*classify.Compile{cmd}, c.Simplify())
	require.Len(t, entries, 1)
	assert.Equal(t, "/w/out", entries[0].Output)
}

func TestBuildLinkingDropsUnknown(t *testing.T) {
	cmd := &classify.Link{
		Linker:      "ld",
		Directory:   "/w",
		Files:       []string{"/tmp/foo-xyz.o", "/usr/lib/libz.a"},
		Arguments:   []string{"-o", "/w/foo", "/tmp/foo-xyz.o", "/usr/lib/libz.a"},
		Output:      "/w/foo",
		OutputIndex: 1,
	}
	entries := BuildLinking([]*classify.Link{cmd}, toolchainMap())
	require.Len(t, entries, 1)
	assert.Equal(t, "/w/foo", entries[0].Output)
	assert.Equal(t, []string{"/w/foo.c.foo-xyz.o"}, entries[0].Objects)
	assert.Empty(t, entries[0].Archives)
	assert.Equal(t, []string{"ld", "-o", "/w/foo", "/w/foo.c.foo-xyz.o"}, entries[0].Arguments)
}

func TestBuildLinkingDiscardsEmpty(t *testing.T) {
	cmd := &classify.Link{
		Linker:    "ld",
		Directory: "/w",
		Files:     []string{"/usr/lib/crt1.o", "/usr/lib/libz.a"},
		Arguments: []string{"-o", "/w/foo", "/usr/lib/crt1.o", "/usr/lib/libz.a"},
		Output:    "/w/foo",
	}
	entries := BuildLinking([]*classify.Link{cmd}, alias.NewCollector().Simplify())
	assert.Empty(t, entries)
}

func TestBuildLinkingPartitions(t *testing.T) {
	c := alias.NewCollector()
	c.Append("/w/a.c", "/w/a.o")
	c.Assign("/w/libx.a", []string{"/w/a.o"})
	c.Assign("/w/libs.so", []string{"/w/a.o"})
	cmd := &classify.Link{
		Linker:    "ld",
		Directory: "/w",
		Files:     []string{"/w/a.o", "/w/libx.a", "/w/libs.so"},
		Arguments: []string{"-o", "/w/app", "/w/a.o", "/w/libx.a", "/w/libs.so"},
		Output:    "/w/app",
	}
	entries := BuildLinking([]*classify.Link{cmd}, c.Simplify())
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"/w/a.o"}, entries[0].Objects)
	assert.Equal(t, []string{"/w/libx.a"}, entries[0].Archives)
	assert.Equal(t, []string{"/w/libs.so"}, entries[0].Shareds)
}
