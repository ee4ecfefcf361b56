package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputManager resolves report output paths against a base directory
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// GetOutputFilePath returns fileName unchanged when it is absolute or already
// carries a directory, otherwise joins it onto the base output directory.
func (om *OutputManager) GetOutputFilePath(fileName string) string {
	if om.BaseOutputDir == "" || filepath.IsAbs(fileName) || filepath.Dir(fileName) != "." {
		return fileName
	}
	return filepath.Join(om.BaseOutputDir, fileName)
}

// EnsureParentDir creates the directory that will hold path, if any.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// FileType determines the file type based on extension
func FileType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".json":
		return "json"
	case ".xlsx":
		return "excel"
	default:
		return "csv"
	}
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
