// Package output renders CLI output for terminals, scripts and machines.
//
// In auto mode a terminal gets styled text and anything else gets markdown,
// which reads well in logs and for agents. JSON mode emits one JSON value per
// line.
package output

import "strings"

// OutputMode selects how the renderer formats output.
type OutputMode string //nolint:revive // name reads better at call sites than output.Mode

// Output modes.
const (
	ModeAuto     OutputMode = "auto"
	ModeText     OutputMode = "text"
	ModeMarkdown OutputMode = "markdown"
	ModeJSON     OutputMode = "json"
)

// Mode parses a mode name. Unknown or empty names select ModeAuto.
func Mode(s string) OutputMode {
	switch OutputMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeText:
		return ModeText
	case ModeMarkdown, "md":
		return ModeMarkdown
	case ModeJSON:
		return ModeJSON
	default:
		return ModeAuto
	}
}
