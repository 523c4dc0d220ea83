package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	client "github.com/hsn0918/llamacloud-client"
)

var (
	documentExts    = []string{".pdf", ".docx", ".doc", ".pptx", ".txt", ".html", ".png", ".jpg", ".jpeg"}
	spreadsheetExts = []string{".xlsx", ".xls", ".csv"}
)

// collectInputs expands file paths, directories (searched recursively) and
// doublestar globs into a de-duplicated file list. An empty exts accepts any file.
func collectInputs(args []string, exts []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one file, directory or glob is required")
	}

	seen := make(map[string]struct{})
	var files []string
	for _, arg := range args {
		pattern := arg
		info, statErr := os.Stat(arg)
		switch {
		case statErr == nil && info.Mode().IsRegular():
			if !hasExt(arg, exts) {
				return nil, fmt.Errorf("unsupported file type: %s", arg)
			}
		case statErr == nil && info.IsDir():
			pattern = filepath.Join(arg, "**", "*")
		case !strings.ContainsAny(arg, "*?[{"):
			return nil, fmt.Errorf("stat path: %w", statErr)
		}

		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", arg, err)
		}
		for _, m := range matches {
			if !hasExt(m, exts) {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no matching files in %s", strings.Join(args, ", "))
	}
	return files, nil
}

func hasExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	return slices.Contains(exts, strings.ToLower(filepath.Ext(name)))
}

// readDocument decodes a YAML file into out. JSON files decode too.
func readDocument(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, data any) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return writeFile(path, content)
}

func writeFile(path string, content []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// printJSON writes data to w, or to path when one is given.
func printJSON(w io.Writer, path string, data any) error {
	if path != "" {
		return writeJSON(path, data)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func changeExt(name, ext string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return base + ext
}

// outputPath places a per-input result under dir, or returns "" when dir is unset.
func outputPath(dir, input, ext string) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, changeExt(filepath.Base(input), ext))
}

func requestIDOf(err error) string {
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.RequestID
	}
	return ""
}
