package logger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogEntry represents a single log entry in the buffer
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Logger    string                 `json:"logger,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// LogBuffer is a thread-safe ring buffer of log entries. Entries evicted from
// the ring are appended to a spill file as JSON lines.
type LogBuffer struct {
	mu           sync.Mutex
	ringBuffer   []LogEntry
	maxSize      int
	currentIndex int
	wrapped      bool
	spillFile    *os.File
	spillWriter  *bufio.Writer

	totalEntries   uint64
	spilledEntries uint64
}

// NewLogBuffer creates a buffer holding maxSize entries. An empty spillFilePath disables spilling.
func NewLogBuffer(maxSize int, spillFilePath string) (*LogBuffer, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d", maxSize)
	}
	lb := &LogBuffer{
		ringBuffer: make([]LogEntry, maxSize),
		maxSize:    maxSize,
	}
	if spillFilePath == "" {
		return lb, nil
	}

	if err := os.MkdirAll(filepath.Dir(spillFilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	spillFile, err := os.OpenFile(spillFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open spill file: %w", err)
	}
	lb.spillFile = spillFile
	lb.spillWriter = bufio.NewWriter(spillFile)
	return lb, nil
}

// Write implements io.Writer for zap JSON encoders: one JSON object per line.
func (lb *LogBuffer) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		if line == "" {
			continue
		}
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			if addErr := lb.Add("info", line, nil); addErr != nil {
				return 0, addErr
			}
			continue
		}

		level, _ := raw["level"].(string)
		msg, _ := raw["msg"].(string)
		name, _ := raw["logger"].(string)
		ts := time.Now()
		if s, ok := raw["time"].(string); ok {
			if parsed, err := time.Parse("2006-01-02T15:04:05.000Z0700", s); err == nil {
				ts = parsed
			}
		}
		delete(raw, "level")
		delete(raw, "msg")
		delete(raw, "logger")
		delete(raw, "time")
		if len(raw) == 0 {
			raw = nil
		}

		if err := lb.add(LogEntry{Timestamp: ts, Level: level, Logger: name, Message: msg, Fields: raw}); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Add adds a new log entry to the buffer
func (lb *LogBuffer) Add(level, message string, fields map[string]interface{}) error {
	return lb.add(LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Fields:    fields,
	})
}

func (lb *LogBuffer) add(entry LogEntry) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	var evicted *LogEntry
	if lb.wrapped {
		old := lb.ringBuffer[lb.currentIndex]
		evicted = &old
	}

	lb.ringBuffer[lb.currentIndex] = entry
	lb.currentIndex = (lb.currentIndex + 1) % lb.maxSize
	if lb.currentIndex == 0 {
		lb.wrapped = true
	}
	lb.totalEntries++

	if evicted != nil && lb.spillWriter != nil {
		if err := lb.spillToFile(*evicted); err != nil {
			return err
		}
		lb.spilledEntries++
	}
	return nil
}

// spillToFile writes an entry to the spill file
func (lb *LogBuffer) spillToFile(entry LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}
	if _, err := lb.spillWriter.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write to spill file: %w", err)
	}
	return nil
}

// GetRecentLogs returns up to limit of the newest entries, oldest first. limit <= 0 returns everything.
func (lb *LogBuffer) GetRecentLogs(limit int) []LogEntry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	count := lb.currentIndex
	if lb.wrapped {
		count = lb.maxSize
	}
	if limit > 0 && limit < count {
		count = limit
	}

	logs := make([]LogEntry, 0, count)
	start := lb.currentIndex - count
	for i := 0; i < count; i++ {
		idx := (start + i + lb.maxSize) % lb.maxSize
		logs = append(logs, lb.ringBuffer[idx])
	}
	return logs
}

// Flush forces a write of any buffered data to the spill file
func (lb *LogBuffer) Flush() error {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.flushLocked()
}

func (lb *LogBuffer) flushLocked() error {
	if lb.spillWriter == nil {
		return nil
	}
	if err := lb.spillWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush spill writer: %w", err)
	}
	if err := lb.spillFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync spill file: %w", err)
	}
	return nil
}

// Sync lets the buffer be used as a zapcore.WriteSyncer.
func (lb *LogBuffer) Sync() error {
	return lb.Flush()
}

// Close spills every entry still in the ring and closes the spill file.
func (lb *LogBuffer) Close() error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.spillWriter == nil {
		return nil
	}

	count := lb.currentIndex
	start := 0
	if lb.wrapped {
		count = lb.maxSize
		start = lb.currentIndex
	}
	for i := 0; i < count; i++ {
		if err := lb.spillToFile(lb.ringBuffer[(start+i)%lb.maxSize]); err != nil {
			return err
		}
	}

	if err := lb.flushLocked(); err != nil {
		return err
	}
	err := lb.spillFile.Close()
	lb.spillWriter = nil
	lb.spillFile = nil
	if err != nil {
		return fmt.Errorf("failed to close spill file: %w", err)
	}
	return nil
}

// GetStats returns buffer statistics
func (lb *LogBuffer) GetStats() (total, spilled uint64) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.totalEntries, lb.spilledEntries
}
