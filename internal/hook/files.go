package hook

import (
	"encoding/json"
	"regexp"
)

const maxChangedFiles = 16

// pathToken matches a file-looking token: at least one path or name
// character followed by a short extension.
var pathToken = regexp.MustCompile(`[A-Za-z0-9_~][A-Za-z0-9_./~-]*\.[A-Za-z0-9]{1,8}`)

// changedFiles extracts the file paths a tool invocation touched. Host
// argument encodings vary, so the structured fields are tried first and a
// path-shaped token scan is the fallback.
func changedFiles(arguments string) []string {
	if files := structuredFiles(arguments); len(files) > 0 {
		return files
	}
	seen := map[string]bool{}
	var files []string
	for _, token := range pathToken.FindAllString(arguments, -1) {
		if seen[token] {
			continue
		}
		seen[token] = true
		files = append(files, token)
		if len(files) == maxChangedFiles {
			break
		}
	}
	return files
}

func structuredFiles(arguments string) []string {
	var payload struct {
		FilePath string   `json:"file_path"`
		Path     string   `json:"path"`
		Files    []string `json:"files"`
		Edits    []struct {
			FilePath string `json:"file_path"`
		} `json:"edits"`
	}
	if err := json.Unmarshal([]byte(arguments), &payload); err != nil {
		return nil
	}
	seen := map[string]bool{}
	var files []string
	add := func(path string) {
		if path == "" || seen[path] || len(files) == maxChangedFiles {
			return
		}
		seen[path] = true
		files = append(files, path)
	}
	add(payload.FilePath)
	add(payload.Path)
	for _, file := range payload.Files {
		add(file)
	}
	for _, edit := range payload.Edits {
		add(edit.FilePath)
	}
	return files
}
