// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package log

import (
	"io"
	"log"
	"sync"
	"time"
)

// stdLogger writes through the standard library's log.Logger, timestamped
// and level-tagged. It is not installed by default: a nil Options.Logger
// becomes a no-op logger, so callers that want output pass
// NewStdLogger explicitly (as unityextract does).
type stdLogger struct {
	mu  sync.Mutex
	std *log.Logger
}

// NewStdLogger returns a Logger that writes to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{std: log.New(w, "", 0)}
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.std.Printf("%s %s %s", time.Now().Format(time.RFC3339), level, formatKeyvals(keyvals))
	return nil
}
