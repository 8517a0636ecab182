// Package report formats and emits line-oriented result records: entity and
// market-information dumps, signal lifecycle events, periodic stats and the
// end-of-run summary.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Sink consumes formatted result records, one per line.
type Sink interface {
	Write(record []string) error
	Flush()
	Close() error
}

// CSVSink writes records to a CSV file.
type CSVSink struct {
	file   *os.File
	writer *csv.Writer
	logger *zap.Logger
	mu     sync.Mutex
}

// NewCSVSink creates a CSV file sink at the given path.
func NewCSVSink(filePath string, logger *zap.Logger) (*CSVSink, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create dump file: %w", err)
	}
	return &CSVSink{
		file:   file,
		writer: csv.NewWriter(file),
		logger: logger,
	}, nil
}

// Write writes a record to the CSV file.
func (s *CSVSink) Write(record []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Flush flushes any buffered data to the underlying file.
func (s *CSVSink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.logger.Warn("CSV flush failed", zap.Error(err))
	}
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	s.Flush()
	return s.file.Close()
}

// LogSink writes records through the structured logger. Used when no dump file
// is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a logger-backed sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Write logs the record as one comma-joined line.
func (s *LogSink) Write(record []string) error {
	s.logger.Info("result", zap.String("record", strings.Join(record, ",")))
	return nil
}

// Flush is a no-op for the log sink.
func (s *LogSink) Flush() {}

// Close is a no-op for the log sink.
func (s *LogSink) Close() error { return nil }
