package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrStop may be returned by a Scan callback to end iteration early
// without error.
var ErrStop = errors.New("stop scan")

// Filter selects events from a log. Zero fields match everything; Limit
// keeps only the most recent matches.
type Filter struct {
	RequestID string
	EventType EventType
	Limit     int
}

func (f Filter) Match(e Event) bool {
	if f.RequestID != "" && e.RequestID != f.RequestID {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	return true
}

// Scan calls fn for every event in the file at path, oldest first. A
// missing file yields no events.
func Scan(path string, fn func(Event) error) error {
	if path == "" {
		return ErrNoPath
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("corrupt audit line %d: %w", lineNo, err)
		}
		if err := fn(e); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}

// ReadEvents returns the events at path that match filter.
func ReadEvents(path string, filter Filter) ([]Event, error) {
	var out []Event
	err := Scan(path, func(e Event) error {
		if !filter.Match(e) {
			return nil
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) > filter.Limit {
			out = out[1:]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
