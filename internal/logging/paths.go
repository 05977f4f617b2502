package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the log directory: $CONVORAG_LOG_DIR, else
// ~/.convorag/logs/.
func DefaultLogDir() string {
	if dir := os.Getenv("CONVORAG_LOG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".convorag", "logs")
	}
	return filepath.Join(home, ".convorag", "logs")
}

// DefaultLogPath returns the main log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "convorag.log")
}

// FindLogFile returns explicit if it exists, else the default log file.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("log file not found: %s", explicit)
		}
		return explicit, nil
	}
	path := DefaultLogPath()
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no log file found. Run a command with --debug or start the server first.\nExpected at: %s", path)
	}
	return path, nil
}
