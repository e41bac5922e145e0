package omnilog

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultChannelSize is the background queue depth when neither the config nor
// OMNILOG_CHANNEL_SIZE sets one.
const DefaultChannelSize = 100

// isTestMode detects if we're running under go test
func isTestMode() bool {
	for _, arg := range os.Args {
		if strings.HasPrefix(arg, "-test.") {
			return true
		}
	}

	if exe, err := os.Executable(); err == nil {
		if strings.HasSuffix(exe, ".test") {
			return true
		}
		if strings.Contains(filepath.Base(exe), ".test") {
			return true
		}
	}

	return false
}

// getDefaultErrorHandler returns the appropriate error handler based on environment
func getDefaultErrorHandler() ErrorHandler {
	if isTestMode() {
		return SilentErrorHandler
	}
	return StderrErrorHandler
}

// getDefaultChannelSize retrieves the default channel size from an environment variable or uses the default value
func getDefaultChannelSize() int {
	if value, exists := os.LookupEnv("OMNILOG_CHANNEL_SIZE"); exists {
		if size, err := strconv.Atoi(value); err == nil && size > 0 {
			return size
		}
	}
	return DefaultChannelSize
}
