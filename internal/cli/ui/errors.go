package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level represents the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message describes a problem reported to the user
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

// Format renders the message:
//
//	✗ ENTITY TYPE NOT FOUND: Ordr
//
//	   Did you mean: Order?
//
//	   → List entity types: modelkit describe
func (m Message) Format() string {
	var b strings.Builder

	var symbol string
	var attr color.Attribute
	switch m.Level {
	case LevelWarning:
		symbol, attr = "!", color.FgYellow
	case LevelInfo:
		symbol, attr = "i", color.FgCyan
	default:
		symbol, attr = "✗", color.FgRed
	}

	head := palette(m.NoColor, attr, color.Bold)
	if m.Context != "" {
		head.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}

	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		palette(m.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}

	if len(m.Hints) > 0 {
		b.WriteString("\n")
		hint := palette(m.NoColor, color.FgCyan)
		for _, h := range m.Hints {
			hint.Fprintf(&b, "   → %s\n", h)
		}
	}

	return b.String()
}

// Write renders the message to w
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.Format())
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	return palette(noColor, color.FgGreen, color.Bold).Sprintf("✓ %s", message)
}

// EntityTypeNotFound reports an unknown entity type name together with close matches
func EntityTypeNotFound(name string, known []string, noColor bool) Message {
	return Message{
		Level:       LevelError,
		Context:     "entity type not found",
		Problem:     name,
		Suggestions: Suggest(name, known, DefaultMaxSuggestions),
		Hints:       []string{"List entity types: modelkit describe <model-file>"},
		NoColor:     noColor,
	}
}

// ConfigError reports an invalid configuration
func ConfigError(err error, noColor bool) Message {
	return Message{
		Level:   LevelError,
		Context: "configuration error",
		Problem: err.Error(),
		Hints: []string{
			"View config: cat modelkit.yml",
			"Get help: modelkit --help",
		},
		NoColor: noColor,
	}
}
