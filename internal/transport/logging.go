// SPDX-License-Identifier: MIT
package transport

import (
	"strconv"
	"strings"

	"audiobars/internal/log"
)

var sinkLog = log.Named("sink")

// LoggingSink writes every Nth frame to the application log. It is useful
// when no display is attached.
type LoggingSink struct {
	every int
	count int
	line  strings.Builder
}

// NewLoggingSink creates a LoggingSink that logs one frame in every.
func NewLoggingSink(every int) *LoggingSink {
	if every < 1 {
		every = 1
	}
	sinkLog.Infof("logging every %d frame(s)", every)
	return &LoggingSink{every: every}
}

// Render logs the frame when it is due.
func (ls *LoggingSink) Render(bars []float64) error {
	ls.count++
	if (ls.count-1)%ls.every != 0 {
		return nil
	}
	ls.line.Reset()
	for i, v := range bars {
		if i > 0 {
			ls.line.WriteByte(' ')
		}
		ls.line.WriteString(strconv.FormatFloat(v, 'f', 2, 64))
	}
	sinkLog.Infof("frame %d: [%s]", ls.count, ls.line.String())
	return nil
}

// Close is a no-op for LoggingSink.
func (ls *LoggingSink) Close() error {
	sinkLog.Debugf("logging sink closed after %d frames", ls.count)
	return nil
}

// Ensure LoggingSink satisfies the interface at compile time.
var _ Sink = (*LoggingSink)(nil)
