package tui

import (
	"os"
	"path/filepath"
)

// GetLogFilePath returns KURT_LOG_FILE when set, otherwise ~/.kurt/logs/kurt.log
func GetLogFilePath() string {
	if customPath := os.Getenv("KURT_LOG_FILE"); customPath != "" {
		return customPath
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "kurt.log"
	}
	return filepath.Join(homeDir, ".kurt", "logs", "kurt.log")
}
