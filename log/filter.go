// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package log

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// FilterLevel sets the minimum level a Filter lets through.
func FilterLevel(level Level) FilterOption {
	return func(f *Filter) { f.level = level }
}

// Filter wraps a Logger and drops records below a minimum level.
type Filter struct {
	logger Logger
	level  Level
}

// NewFilter builds a level-filtering Logger around logger.
func NewFilter(logger Logger, opts ...FilterOption) *Filter {
	f := &Filter{logger: logger, level: LevelWarn}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Log implements Logger.
func (f *Filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.logger.Log(level, keyvals...)
}
