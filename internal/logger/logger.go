package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	mu  sync.Mutex
	out io.Writer = color.Output

	infoColor    = color.New(color.FgBlue)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	debugColor   = color.New(color.FgHiBlack)

	debugEnabled = os.Getenv("LOG_DEBUG") == "true"
)

// SetOutput redirects every level, mostly for tests
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func write(c *color.Color, prefix, message string, args ...interface{}) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	line := c.Sprintf("%s%s", prefix, fmt.Sprintf(message, args...))

	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, "%s %s\n", timestamp, line)
}

// Info logs general information
func Info(message string, args ...interface{}) {
	write(infoColor, "", message, args...)
}

// Success logs a completed step
func Success(message string, args ...interface{}) {
	write(successColor, "✓ ", message, args...)
}

// Warning logs a degraded but recoverable condition
func Warning(message string, args ...interface{}) {
	write(warnColor, "⚠️  ", message, args...)
}

// Error logs a failure
func Error(message string, args ...interface{}) {
	write(errorColor, "❌ ", message, args...)
}

// Debug only prints when LOG_DEBUG=true
func Debug(message string, args ...interface{}) {
	if !debugEnabled {
		return
	}
	write(debugColor, "DEBUG: ", message, args...)
}

// Fatal logs and exits
func Fatal(message string, args ...interface{}) {
	write(errorColor, "❌ ", message, args...)
	os.Exit(1)
}
