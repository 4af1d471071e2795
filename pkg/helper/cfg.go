package helper

import (
	"os"
	"path/filepath"
)

// GetCfgPath returns the path to the configuration file.
//
// Priority:
// 1. If filename is an absolute path, return it directly.
// 2. Check ./{filename} and ./configs/{filename}
// 3. Otherwise, fallback to /etc/doom-server/{filename}
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}

	if filepath.IsAbs(filename) {
		return filename
	}

	if p := getCurrentDir(filename); p != "" {
		return p
	}

	// fallback
	return filepath.Join("/etc/doom-server", filename)
}

func getCurrentDir(filename string) string {
	currentDir, err := os.Getwd()
	if err != nil || currentDir == "" {
		return ""
	}

	for _, candidate := range []string{
		filepath.Join(currentDir, filename),
		filepath.Join(currentDir, "configs", filename),
	} {
		if _, err := os.Stat(candidate); err == nil {
			if abs, err := filepath.Abs(candidate); err == nil {
				return abs
			}
		}
	}
	return ""
}
