// Copyright 2021 The Docker Tidy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tidy

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var nameLevelMap = map[string]zerolog.Level{
	"DEBUG":    zerolog.DebugLevel,
	"INFO":     zerolog.InfoLevel,
	"WARN":     zerolog.WarnLevel,
	"WARNING":  zerolog.WarnLevel,
	"ERROR":    zerolog.ErrorLevel,
	"CRITICAL": zerolog.FatalLevel,
	"FATAL":    zerolog.FatalLevel,
}

// ParseLevel parses a level name. It is case-insensitive and defaults to
// WARNING when empty.
func ParseLevel(level string) (zerolog.Level, error) {
	normalized := strings.ToUpper(strings.TrimSpace(level))
	if normalized == "" {
		normalized = "WARNING"
	}

	v, ok := nameLevelMap[normalized]
	if !ok {
		return zerolog.NoLevel, &PolicyError{Field: "log level", Value: level, Err: fmt.Errorf("not found")}
	}
	return v, nil
}

// Logger is a leveled key/value logger. Errors go to the error writer,
// everything else to the output writer. A nil *Logger discards everything.
type Logger struct {
	out zerolog.Logger
	err zerolog.Logger
}

// NewLogger creates a logger. When json is false the output is formatted for
// a terminal.
func NewLogger(level string, json bool, outw, errw io.Writer) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	wrap := func(w io.Writer) zerolog.Logger {
		if !json {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
		}
		return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	}
	return &Logger{out: wrap(outw), err: wrap(errw)}, nil
}

// NopLogger returns a logger that discards everything.
func NopLogger() *Logger {
	return &Logger{out: zerolog.Nop(), err: zerolog.Nop()}
}

// With returns a child logger that adds the fields to every entry.
func (l *Logger) With(fields ...any) *Logger {
	checkFields(fields)
	return &Logger{
		out: l.out.With().Fields(fields).Logger(),
		err: l.err.With().Fields(fields).Logger(),
	}
}

func (l *Logger) Debug(msg string, fields ...any) {
	if l == nil {
		return
	}
	l.log(l.out.Debug(), msg, fields...)
}

func (l *Logger) Info(msg string, fields ...any) {
	if l == nil {
		return
	}
	l.log(l.out.Info(), msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...any) {
	if l == nil {
		return
	}
	l.log(l.out.Warn(), msg, fields...)
}

func (l *Logger) Error(msg string, fields ...any) {
	if l == nil {
		return
	}
	l.log(l.err.Error(), msg, fields...)
}

func (l *Logger) log(e *zerolog.Event, msg string, fields ...any) {
	checkFields(fields)

	// Disabled levels return a nil event.
	if e == nil {
		return
	}

	for i := 0; i < len(fields); i += 2 {
		key := fields[i].(string)
		switch typ := fields[i+1].(type) {
		case error:
			e = e.AnErr(key, typ)
		case time.Time:
			e = e.Str(key, typ.UTC().Format(time.RFC3339))
		case fmt.Stringer:
			e = e.Stringer(key, typ)
		default:
			e = e.Interface(key, typ)
		}
	}
	e.Msg(msg)
}

func checkFields(fields []any) {
	if len(fields)%2 != 0 {
		panic("number of fields must be even")
	}
	for i := 0; i < len(fields); i += 2 {
		if _, ok := fields[i].(string); !ok {
			panic(fmt.Errorf("field %d is not a string (%T, %q)", i, fields[i], fields[i]))
		}
	}
}
