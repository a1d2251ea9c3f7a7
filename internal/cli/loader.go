package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/graphite/internal/blueprint"
)

// Error code constants - unified across all CLI commands. Blueprint
// validation codes (E2xx) come from the blueprint package.
const (
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeScanError  = "E002" // Directory scan error
	ErrCodeNoFiles    = "E003" // No blueprint files found
	ErrCodeLoadFailed = "E004" // Blueprint could not be decoded
	ErrCodeNotFound   = "E005" // Path not found
	ErrCodeBadTrigger = "E006" // Malformed --trigger flag
	ErrCodeDatabase   = "E007" // Trace store error
)

// LoadError is a blueprint path that could not be loaded.
type LoadError struct {
	Path    string
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the 1-based source line, or 0 when unknown.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// LoadedBlueprint is a blueprint together with the file it came from.
type LoadedBlueprint struct {
	Path      string
	Blueprint *blueprint.Blueprint
}

// LoadBlueprint loads one blueprint file, classifying failures by code.
func LoadBlueprint(path string) (*blueprint.Blueprint, error) {
	bp, err := blueprint.Load(path)
	if err == nil {
		return bp, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Path: path, Code: ErrCodeNotFound, Message: "blueprint not found"}
	}
	var le *blueprint.LoadError
	if errors.As(err, &le) {
		return nil, &LoadError{Path: path, Code: ErrCodeLoadFailed, Message: le.Field + ": " + le.Message, Pos: le.Pos}
	}
	return nil, &LoadError{Path: path, Code: ErrCodeLoadFailed, Message: err.Error()}
}

// LoadBlueprints loads path, which is a blueprint file or a directory of
// them. Every file is attempted; failures are collected in file order.
func LoadBlueprints(path string) ([]LoadedBlueprint, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Path: path, Code: ErrCodeNotFound, Message: "path not found"}}
	}
	if err != nil {
		return nil, []error{&LoadError{Path: path, Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing path: %v", err)}}
	}

	files := []string{path}
	if info.IsDir() {
		files, err = FindBlueprintFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Path: path, Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(files) == 0 {
			return nil, []error{&LoadError{Path: path, Code: ErrCodeNoFiles, Message: "no blueprint files found"}}
		}
	}

	var (
		loaded []LoadedBlueprint
		errs   []error
	)
	for _, f := range files {
		bp, err := LoadBlueprint(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		loaded = append(loaded, LoadedBlueprint{Path: f, Blueprint: bp})
	}
	return loaded, errs
}

// FindBlueprintFiles walks dir and returns its .cue, .yaml and .yml files
// sorted by path.
func FindBlueprintFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".cue", ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// errorCode returns the CLI error code for err.
func errorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}
