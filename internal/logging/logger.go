/* SPDX-License-Identifier: Apache-2.0
 *
 * Copyright 2023 Damian Peckett <damian@pecke.tt>.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/gpu-ninja/lumext/internal/config"
	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TriviaLevel is one step more verbose than debug. It is used for full
// request and directory payload dumps.
const TriviaLevel = zapcore.DebugLevel - 1

// New builds the process logger writing to stderr.
func New(cfg config.Log) (*zap.Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(cfg config.Log, w io.Writer) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = encodeLevel

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "logfmt", "":
		encoder = zaplogfmt.NewEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), zap.NewAtomicLevelAt(level))

	return zap.New(core, zap.AddCaller()), nil
}

// ParseLevel parses a level name, including "trivia".
func ParseLevel(name string) (zapcore.Level, error) {
	if name == "trivia" {
		return TriviaLevel, nil
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return level, fmt.Errorf("unsupported log level: %s", name)
	}

	return level, nil
}

// Trivia logs a message at TriviaLevel.
func Trivia(logger *zap.Logger, msg string, fields ...zap.Field) {
	if ce := logger.Check(TriviaLevel, msg); ce != nil {
		ce.Write(fields...)
	}
}

func encodeLevel(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if level == TriviaLevel {
		enc.AppendString("trivia")
		return
	}

	zapcore.LowercaseLevelEncoder(level, enc)
}
