// Package cdb defines the persisted compilation and linking database schemas
// and builds them from classified execution records.
package cdb

import (
	"encoding/json"
	"fmt"
	"os"
)

// CompileEntry is one compilation database record. Either Arguments or the
// whitespace/shell-token Command form is populated; loaders accept both.
type CompileEntry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments,omitempty"`
	Command   string   `json:"command,omitempty"`
	Output    string   `json:"output,omitempty"`
}

// LinkEntry is one linking database record with its resolved input
// partitions.
type LinkEntry struct {
	Output    string   `json:"output"`
	Directory string   `json:"directory"`
	Arguments []string `json:"arguments,omitempty"`
	Command   string   `json:"command,omitempty"`
	Objects   []string `json:"objects,omitempty"`
	Archives  []string `json:"archives,omitempty"`
	Shareds   []string `json:"shareds,omitempty"`
}

// WriteCompilation persists a compilation database.
func WriteCompilation(path string, entries []CompileEntry) error {
	return writeJSON(path, entries)
}

// WriteLinking persists a linking database.
func WriteLinking(path string, entries []LinkEntry) error {
	return writeJSON(path, entries)
}

// LoadCompilation reads a compilation database file.
func LoadCompilation(path string) ([]CompileEntry, error) {
	var entries []CompileEntry
	if err := readJSON(path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadLinking reads a linking database file.
func LoadLinking(path string) ([]LinkEntry, error) {
	var entries []LinkEntry
	if err := readJSON(path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// WriteJSON persists any database-shaped value with the indentation the
// databases are conventionally stored with.
func WriteJSON(path string, v any) error {
	return writeJSON(path, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
