package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// DirName is the per-project state directory
	DirName = ".ducklint"
	// HomeEnvVar overrides where project-independent state lives
	HomeEnvVar = "DUCKLINT_HOME"
)

// CanonicalizePath converts an absolute path to a project-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to project root
// - Converts backslashes to forward slashes
func CanonicalizePath(absolutePath string, projectRoot string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		// If the file doesn't exist yet, use the path as-is
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	rootResolved, err := filepath.EvalSymlinks(projectRoot)
	if err != nil {
		if os.IsNotExist(err) {
			rootResolved = projectRoot
		} else {
			return "", err
		}
	}

	relativePath, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}

	return filepath.ToSlash(relativePath), nil
}

// IsWithinProject checks if a path is within the project root
func IsWithinProject(path string, projectRoot string) bool {
	canonical, err := CanonicalizePath(path, projectRoot)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(canonical, "..")
}

// NormalizePath normalizes a path by converting backslashes to forward slashes
func NormalizePath(path string) string {
	return filepath.ToSlash(path)
}

// JoinProjectPath joins a project root with a canonical path
func JoinProjectPath(projectRoot string, canonicalPath string) string {
	normalizedPath := strings.ReplaceAll(canonicalPath, "\\", "/")
	parts := strings.Split(normalizedPath, "/")
	return filepath.Join(append([]string{projectRoot}, parts...)...)
}

// GetHome returns the user-level state directory (~/.ducklint unless overridden)
func GetHome() (string, error) {
	if env := os.Getenv(HomeEnvVar); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DirName), nil
}

// StateDir returns <projectRoot>/.ducklint
func StateDir(projectRoot string) string {
	return filepath.Join(projectRoot, DirName)
}

// EnsureStateDir creates the state directory if needed
func EnsureStateDir(projectRoot string) (string, error) {
	dir := StateDir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// LogsDir returns <projectRoot>/.ducklint/logs
func LogsDir(projectRoot string) string {
	return filepath.Join(StateDir(projectRoot), "logs")
}

// EnsureLogsDir creates the logs directory if needed
func EnsureLogsDir(projectRoot string) (string, error) {
	dir := LogsDir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// ConfigPath returns the path config init writes
func ConfigPath(projectRoot string) string {
	return filepath.Join(StateDir(projectRoot), "config.toml")
}

// LogPath returns the log file path for a subsystem
func LogPath(projectRoot, subsystem string) string {
	return filepath.Join(LogsDir(projectRoot), subsystem+".log")
}

// JournalPath returns the rewrite journal database path
func JournalPath(projectRoot string) string {
	return filepath.Join(StateDir(projectRoot), "journal.db")
}

// ExportDir returns the scratch directory for export/import round trips
func ExportDir(projectRoot string) string {
	return filepath.Join(StateDir(projectRoot), "export")
}

// EnsureExportDir creates the export scratch directory if needed
func EnsureExportDir(projectRoot string) (string, error) {
	dir := ExportDir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// IsStatePath reports whether a project-relative path lies in the state directory
func IsStatePath(canonicalPath string) bool {
	p := NormalizePath(canonicalPath)
	return p == DirName || strings.HasPrefix(p, DirName+"/")
}
