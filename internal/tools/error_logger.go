package tools

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sammcj/mcp-pdftools/internal/config"
	"github.com/sammcj/mcp-pdftools/internal/pdferr"
	"github.com/sirupsen/logrus"
)

// ToolErrorLogEntry is one line of the tool error log
type ToolErrorLogEntry struct {
	Timestamp string         `json:"timestamp"`
	ToolName  string         `json:"tool_name"`
	ErrorKind string         `json:"error_kind"`
	Error     string         `json:"error"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Transport string         `json:"transport,omitempty"`
}

// ToolErrorLogger appends failed tool runs to a JSON lines file
type ToolErrorLogger struct {
	enabled  bool
	logFile  *os.File
	logger   *logrus.Logger
	mu       sync.Mutex
	filePath string
}

var (
	globalErrorLogger *ToolErrorLogger
	errorLoggerOnce   sync.Once
)

// DefaultLogRetentionDays is how long entries are kept
const DefaultLogRetentionDays = 60

// InitGlobalErrorLogger enables the error log when LOG_TOOL_ERRORS=true
func InitGlobalErrorLogger(logger *logrus.Logger) error {
	var initErr error
	errorLoggerOnce.Do(func() {
		if os.Getenv("LOG_TOOL_ERRORS") != "true" {
			globalErrorLogger = &ToolErrorLogger{logger: logger}
			return
		}

		l, err := NewToolErrorLogger(filepath.Join(config.Dir(), "logs", "tool-errors.log"), logger)
		if err != nil {
			initErr = err
			return
		}
		globalErrorLogger = l

		// rotation rewrites the file, keep it off the startup path
		go func() {
			if rotateErr := l.rotateOldLogs(time.Now()); rotateErr != nil {
				logger.WithError(rotateErr).Warn("Failed to rotate old tool error logs")
			}
		}()

		logger.Infof("Tool error logging enabled: %s", l.filePath)
	})

	return initErr
}

// NewToolErrorLogger opens path for appending, creating its directory
func NewToolErrorLogger(path string, logger *logrus.Logger) (*ToolErrorLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open tool error log file: %w", err)
	}
	return &ToolErrorLogger{
		enabled:  true,
		logFile:  logFile,
		logger:   logger,
		filePath: path,
	}, nil
}

// GetGlobalErrorLogger returns the global error logger, disabled if never initialised
func GetGlobalErrorLogger() *ToolErrorLogger {
	if globalErrorLogger == nil {
		return &ToolErrorLogger{}
	}
	return globalErrorLogger
}

// LogToolError records a failed run
func (l *ToolErrorLogger) LogToolError(toolName string, args map[string]any, err error, transport string) {
	if !l.enabled || l.logFile == nil || err == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := ToolErrorLogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		ToolName:  toolName,
		ErrorKind: pdferr.Kind(err),
		Error:     err.Error(),
		Arguments: args,
		Transport: transport,
	}

	jsonData, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		l.warn(marshalErr, "Failed to marshal tool error log entry")
		return
	}
	if _, writeErr := l.logFile.Write(append(jsonData, '\n')); writeErr != nil {
		l.warn(writeErr, "Failed to write tool error log entry")
		return
	}
	if syncErr := l.logFile.Sync(); syncErr != nil {
		l.warn(syncErr, "Failed to sync tool error log file")
	}
}

func (l *ToolErrorLogger) warn(err error, msg string) {
	if l.logger != nil {
		l.logger.WithError(err).Error(msg)
	}
}

// Close closes the log file
func (l *ToolErrorLogger) Close() error {
	if !l.enabled || l.logFile == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// IsEnabled returns whether error logging is enabled
func (l *ToolErrorLogger) IsEnabled() bool {
	return l.enabled
}

// GetLogFilePath returns the path to the error log file
func (l *ToolErrorLogger) GetLogFilePath() string {
	return l.filePath
}

// rotateOldLogs drops entries older than the retention period relative to
// now. Lines that cannot be parsed are kept.
func (l *ToolErrorLogger) rotateOldLogs(now time.Time) error {
	if !l.enabled || l.filePath == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		if err := l.logFile.Close(); err != nil {
			return fmt.Errorf("failed to close log file for rotation: %w", err)
		}
		l.logFile = nil
	}

	file, err := os.Open(l.filePath)
	if err != nil {
		return l.reopenLocked()
	}

	var kept []string
	cutoff := now.AddDate(0, 0, -DefaultLogRetentionDays)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry ToolErrorLogEntry
		if json.Unmarshal([]byte(line), &entry) != nil {
			kept = append(kept, line)
			continue
		}
		ts, err := time.Parse(time.RFC3339, entry.Timestamp)
		if err != nil || ts.After(cutoff) {
			kept = append(kept, line)
		}
	}
	scanErr := scanner.Err()
	_ = file.Close()
	if scanErr != nil {
		_ = l.reopenLocked()
		return fmt.Errorf("error reading log file during rotation: %w", scanErr)
	}

	content := ""
	if len(kept) > 0 {
		content = strings.Join(kept, "\n") + "\n"
	}
	tmpPath := l.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(content), 0600); err != nil {
		_ = l.reopenLocked()
		return fmt.Errorf("failed to write temporary rotated log file: %w", err)
	}
	if err := os.Rename(tmpPath, l.filePath); err != nil {
		_ = os.Remove(tmpPath)
		_ = l.reopenLocked()
		return fmt.Errorf("failed to rename temporary log file during rotation: %w", err)
	}

	return l.reopenLocked()
}

// reopenLocked reopens the log file in append mode. Caller must hold l.mu.
func (l *ToolErrorLogger) reopenLocked() error {
	logFile, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to reopen log file: %w", err)
	}
	l.logFile = logFile
	return nil
}
