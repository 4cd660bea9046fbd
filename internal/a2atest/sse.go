// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2atest

import (
	"bufio"
	"io"
	"strings"
)

// SSEEvent is one decoded Server-Sent Event.
type SSEEvent struct {
	Name string
	Data string
}

// ReadSSE reads events from r until EOF.
func ReadSSE(r io.Reader) ([]SSEEvent, error) {
	var (
		events []SSEEvent
		cur    SSEEvent
		seen   bool
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if seen {
				events = append(events, cur)
			}
			cur, seen = SSEEvent{}, false
		case strings.HasPrefix(line, "event: "):
			cur.Name = strings.TrimPrefix(line, "event: ")
			seen = true
		case strings.HasPrefix(line, "data: "):
			cur.Data += strings.TrimPrefix(line, "data: ")
			seen = true
		}
	}
	if seen {
		events = append(events, cur)
	}
	return events, sc.Err()
}
