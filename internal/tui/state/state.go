// Package state holds the pure cursor and window arithmetic behind the feed
// list.
package state

import "github.com/planetary-social/planetary-cli/internal/ssb"

// Rows taken by the title, toolbar, message panel and footer, and the extra
// rows a status line adds.
const (
	ChromeRows = 6
	StatusRows = 2
)

// ClampCursor keeps cursor inside [0, size).
func ClampCursor(cursor, size int) int {
	if size <= 0 {
		return 0
	}
	return max(0, min(cursor, size-1))
}

// PageStep is how far pgup/pgdown move for a terminal of the given height.
func PageStep(height int, hasStatus bool) int {
	if height <= 0 {
		return 10
	}
	used := ChromeRows
	if hasStatus {
		used += StatusRows
	}
	return max(3, height-used)
}

// CenteredWindow returns the [start, end) rows to draw so the cursor sits in
// the middle of a window of height rows where possible.
func CenteredWindow(totalRows, cursor, height int) (int, int) {
	switch {
	case totalRows <= 0:
		return 0, 0
	case height <= 0 || totalRows <= height:
		return 0, totalRows
	}
	start := ClampCursor(cursor, totalRows) - height/2
	start = max(0, min(start, totalRows-height))
	return start, start + height
}

// IndexByKey returns the position of key in msgs, or -1.
func IndexByKey(msgs []ssb.Message, key ssb.MessageKey) int {
	if key == "" {
		return -1
	}
	for i, msg := range msgs {
		if msg.Key == key {
			return i
		}
	}
	return -1
}

// RestoreCursor keeps the cursor on the message with key when it is still
// in msgs, otherwise clamps the previous position.
func RestoreCursor(msgs []ssb.Message, key ssb.MessageKey, cursor int) int {
	if i := IndexByKey(msgs, key); i >= 0 {
		return i
	}
	return ClampCursor(cursor, len(msgs))
}
