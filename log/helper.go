// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package log

import "fmt"

// Helper wraps a Logger with printf-style convenience methods, the same
// role log.Helper plays for saferwall/pe call sites like
// pe.logger.Warnf(...).
type Helper struct {
	logger Logger
}

// NewHelper wraps logger.
func NewHelper(logger Logger) *Helper {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, format string, args ...interface{}) {
	if h == nil {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	_ = h.logger.Log(level, "msg", msg)
}

// Debugf logs at debug level.
func (h *Helper) Debugf(format string, args ...interface{}) { h.log(LevelDebug, format, args...) }

// Infof logs at info level.
func (h *Helper) Infof(format string, args ...interface{}) { h.log(LevelInfo, format, args...) }

// Warnf logs at warn level.
func (h *Helper) Warnf(format string, args ...interface{}) { h.log(LevelWarn, format, args...) }

// Warn logs a single warn-level message.
func (h *Helper) Warn(args ...interface{}) { h.log(LevelWarn, fmt.Sprint(args...)) }

// Errorf logs at error level.
func (h *Helper) Errorf(format string, args ...interface{}) { h.log(LevelError, format, args...) }

// Error logs a single error-level message.
func (h *Helper) Error(args ...interface{}) { h.log(LevelError, fmt.Sprint(args...)) }
