package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// history holds the retained messages, newest first, and mirrors them
// to a JSON file after every change. It is owned by the hub goroutine
// and needs no locking of its own.
type history struct {
	path  string
	limit int
	msgs  []Message
}

func newHistory(path string, limit int) *history {
	return &history{path: path, limit: limit, msgs: []Message{}}
}

// load reads the history file. A missing file is an empty history; a
// file that does not parse is reported so the caller can log it and
// start empty rather than refuse to boot.
func (h *history) load() error {
	b, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", h.path, err)
	}
	var msgs []Message
	if err := json.Unmarshal(b, &msgs); err != nil {
		return fmt.Errorf("parse %s: %w", h.path, err)
	}
	if len(msgs) > h.limit {
		msgs = msgs[:h.limit]
	}
	if msgs == nil {
		msgs = []Message{}
	}
	h.msgs = msgs
	return nil
}

// prepend puts m at the front and drops anything past the limit.
func (h *history) prepend(m Message) {
	h.msgs = append([]Message{m}, h.msgs...)
	if len(h.msgs) > h.limit {
		h.msgs = h.msgs[:h.limit]
	}
}

func (h *history) clear() {
	h.msgs = []Message{}
}

// all returns a copy; the caller may hold it across hub iterations.
func (h *history) all() []Message {
	out := make([]Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// persist rewrites the whole file. The set is capped at limit entries,
// so a full rewrite stays cheap, and the newest-first order on disk
// matches the wire order.
func (h *history) persist() error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	b, err := json.MarshalIndent(h.msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := os.WriteFile(h.path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", h.path, err)
	}
	return nil
}
