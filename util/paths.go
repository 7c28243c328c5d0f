package util

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AppConfigDir = ".config/chartreuse"
)

// GetConfigDir returns ~/.config/chartreuse and creates it if needed.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, AppConfigDir)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// ResolveFilePath prefers ./filename, then ~/.config/chartreuse/filename.
// When neither exists the config dir path is returned so the file can be
// created there.
func ResolveFilePath(filename string) string {
	return ResolveFilePathWithSubdir("", filename)
}

// ResolveFilePathWithSubdir is ResolveFilePath for a file below subdir, e.g.
// .ssh/chartreusehostkey. The subdirectory is created in the config dir.
func ResolveFilePathWithSubdir(subdir, filename string) string {
	localPath := filepath.Join(subdir, filename)
	if _, err := os.Stat(localPath); err == nil {
		return localPath
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return localPath
	}

	userDir := filepath.Join(configDir, subdir)
	userPath := filepath.Join(userDir, filename)
	if _, err := os.Stat(userPath); err == nil {
		return userPath
	}
	if subdir != "" {
		_ = os.MkdirAll(userDir, 0755)
	}
	return userPath
}
