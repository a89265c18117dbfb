// Package trigger watches a line stream for start and stop phrases and
// accumulates the lines between them into a document.
package trigger

import "strings"

// Matches reports whether line contains trigger, ignoring case. An empty
// trigger matches every line.
func Matches(line, trigger string) bool {
	return trigger == "" || strings.Contains(strings.ToLower(line), strings.ToLower(trigger))
}
