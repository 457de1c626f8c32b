package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ExportFormat represents supported export formats
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatMarkdown ExportFormat = "markdown"
)

// TurnExport is a turn flattened for export
type TurnExport struct {
	Number   int    `json:"number"`
	Player   string `json:"player,omitempty"`
	Narrator string `json:"narrator,omitempty"`
}

// StoryExport is the exported form of a story transcript
type StoryExport struct {
	Preamble  string       `json:"preamble,omitempty"`
	TurnCount int          `json:"turn_count"`
	WordCount int          `json:"word_count"`
	Turns     []TurnExport `json:"turns"`
}

// ExportStory writes a story transcript in the requested format
func ExportStory(story string, format string, writer io.Writer) error {
	preamble, exchanges := Parse(story)
	export := buildExport(preamble, exchanges)

	switch ExportFormat(strings.ToLower(format)) {
	case FormatJSON:
		return exportJSON(export, writer)
	case FormatMarkdown, "md":
		return exportMarkdown(export, writer)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: json, markdown)", format)
	}
}

func buildExport(preamble string, exchanges []Exchange) StoryExport {
	turns := GroupTurns(exchanges)
	export := StoryExport{
		Preamble:  preamble,
		TurnCount: len(turns),
		Turns:     make([]TurnExport, len(turns)),
	}

	for i, t := range turns {
		te := TurnExport{Number: i + 1}
		if t.Player != nil {
			te.Player = t.Player.Text()
			export.WordCount += len(strings.Fields(te.Player))
		}
		if t.Narrator != nil {
			te.Narrator = t.Narrator.Text()
			export.WordCount += len(strings.Fields(te.Narrator))
		}
		export.Turns[i] = te
	}

	return export
}

// exportJSON writes the story as JSON
func exportJSON(export StoryExport, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func exportMarkdown(export StoryExport, writer io.Writer) error {
	var b strings.Builder

	b.WriteString("# The Story So Far\n\n")
	if export.Preamble != "" {
		b.WriteString(export.Preamble)
		b.WriteString("\n\n")
	}

	for _, t := range export.Turns {
		b.WriteString(fmt.Sprintf("## Turn %d\n\n", t.Number))
		if t.Player != "" {
			b.WriteString("**Player:** ")
			b.WriteString(t.Player)
			b.WriteString("\n\n")
		}
		if t.Narrator != "" {
			b.WriteString(t.Narrator)
			b.WriteString("\n\n")
		}
	}

	_, err := io.WriteString(writer, strings.TrimRight(b.String(), "\n")+"\n")
	return err
}
