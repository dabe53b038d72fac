// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dylanclarke890/krystal/lib/dataflow"
)

// processedMsg carries the running total of source bytes processed.
type processedMsg int64

// logLineMsg is a formatted record to show above the display.
type logLineMsg struct {
	level slog.Level
	text  string
}

// messageSender is the part of *tea.Program the handler uses.
type messageSender interface {
	Send(msg tea.Msg)
}

// LogHandler is a slog.Handler that routes a pipeline's log records into
// a bubbletea program. [dataflow.LogChunkProcessed] records advance the
// progress bar whatever the configured level; [dataflow.LogProgress]
// records are dropped since the bar shows the same thing. Any other
// record at or above the level is formatted as one line and shown above
// the bar.
//
// The handler must be created before the program starts. Call SetProgram
// once the tea.Program exists; records arriving before that only update
// the byte count. All handlers derived via WithAttrs/WithGroup share the
// program pointer and the byte count.
type LogHandler struct {
	level     slog.Level
	program   *atomic.Pointer[messageSender]
	processed *atomic.Int64
	attrs     []slog.Attr
	groups    []string
}

// NewLogHandler creates a handler printing records at or above level.
func NewLogHandler(level slog.Level) *LogHandler {
	return &LogHandler{
		level:     level,
		program:   &atomic.Pointer[messageSender]{},
		processed: &atomic.Int64{},
	}
}

// SetProgram sets the bubbletea program that receives records. Safe to
// call from any goroutine.
func (handler *LogHandler) SetProgram(program *tea.Program) {
	handler.setSender(program)
}

func (handler *LogHandler) setSender(sender messageSender) {
	handler.program.Store(&sender)
}

// Processed returns the number of source bytes reported so far.
func (handler *LogHandler) Processed() int64 {
	return handler.processed.Load()
}

// Enabled reports true for debug records so that chunk records reach
// Handle even when the display level is higher.
func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelDebug
}

func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	switch record.Message {
	case dataflow.LogChunkProcessed:
		var chunkBytes int64
		record.Attrs(func(attr slog.Attr) bool {
			if attr.Key == "bytes_in" {
				chunkBytes = attr.Value.Int64()
				return false
			}
			return true
		})
		total := handler.processed.Add(chunkBytes)
		if sender := handler.sender(); sender != nil {
			sender.Send(processedMsg(total))
		}
		return nil
	case dataflow.LogProgress:
		return nil
	}

	if record.Level < handler.level {
		return nil
	}
	if sender := handler.sender(); sender != nil {
		sender.Send(logLineMsg{level: record.Level, text: handler.format(record)})
	}
	return nil
}

func (handler *LogHandler) sender() messageSender {
	pointer := handler.program.Load()
	if pointer == nil {
		return nil
	}
	return *pointer
}

// format renders "LEVEL message key=value ...". Handler attrs come
// first; record attrs carry the group prefix.
func (handler *LogHandler) format(record slog.Record) string {
	var builder strings.Builder
	builder.WriteString(record.Level.String())
	builder.WriteByte(' ')
	builder.WriteString(record.Message)

	for _, attr := range handler.attrs {
		fmt.Fprintf(&builder, " %s=%s", attr.Key, attr.Value)
	}
	prefix := ""
	if len(handler.groups) > 0 {
		prefix = strings.Join(handler.groups, ".") + "."
	}
	record.Attrs(func(attr slog.Attr) bool {
		fmt.Fprintf(&builder, " %s%s=%s", prefix, attr.Key, attr.Value)
		return true
	})
	return builder.String()
}

func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{
		level:     handler.level,
		program:   handler.program,
		processed: handler.processed,
		attrs:     append(sliceClone(handler.attrs), attrs...),
		groups:    sliceClone(handler.groups),
	}
}

func (handler *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{
		level:     handler.level,
		program:   handler.program,
		processed: handler.processed,
		attrs:     sliceClone(handler.attrs),
		groups:    append(sliceClone(handler.groups), name),
	}
}

// sliceClone returns a shallow copy of a slice.
func sliceClone[T any](source []T) []T {
	if source == nil {
		return nil
	}
	result := make([]T, len(source))
	copy(result, source)
	return result
}
