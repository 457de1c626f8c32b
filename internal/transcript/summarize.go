package transcript

import (
	"strings"
)

const (
	// DefaultSummaryWindow is the number of segments kept by Summarize.
	DefaultSummaryWindow = 5

	// NoHistory is returned when there is nothing to summarize.
	NoHistory = "No story history to summarize."
)

// Summarize returns the tail of a story transcript for display. It splits on
// the literal "Player:" label (or on "DM:" when the story has no player turn
// yet), keeps the last window segments and rejoins them with "Player:".
//
// This is a windowing heuristic on label text, not a parse: a message body
// that itself contains "Player:" or "DM:" will be mis-split. Use
// SummarizeTurns when typed exchanges are available.
func Summarize(storyText string, window int) string {
	if strings.TrimSpace(storyText) == "" {
		return NoHistory
	}
	if window <= 0 {
		window = DefaultSummaryWindow
	}

	segments := strings.Split(storyText, PlayerLabel)
	if len(segments) < 2 {
		segments = strings.Split(storyText, NarratorLabel)
	}
	if len(segments) > window {
		segments = segments[len(segments)-window:]
	}

	result := strings.Join(segments, PlayerLabel)
	if !strings.HasPrefix(result, PlayerLabel) && strings.Contains(result, NarratorLabel) {
		result = PlayerLabel + result
	}
	return result
}

// Turn pairs a player action with the narrator reply that followed it.
// Either side may be missing at the edges of a transcript.
type Turn struct {
	Player   *Exchange `json:"player,omitempty"`
	Narrator *Exchange `json:"narrator,omitempty"`
}

// GroupTurns folds an exchange sequence into turns. A narrator entry closes
// the current turn; a player entry opens a new one. Empty exchanges are
// skipped.
func GroupTurns(exchanges []Exchange) []Turn {
	var (
		turns   []Turn
		current Turn
		open    bool
	)

	for i := range exchanges {
		ex := exchanges[i]
		if ex.IsEmpty() {
			continue
		}

		switch ex.Role {
		case RolePlayer:
			if open {
				turns = append(turns, current)
			}
			current = Turn{Player: &ex}
			open = true
		case RoleNarrator:
			current.Narrator = &ex
			turns = append(turns, current)
			current = Turn{}
			open = false
		}
	}
	if open {
		turns = append(turns, current)
	}

	return turns
}

// SummarizeTurns renders the last window turns of a typed exchange sequence
// in transcript format. Unlike Summarize it never mis-splits on label text
// inside a message.
func SummarizeTurns(exchanges []Exchange, window int) string {
	if window <= 0 {
		window = DefaultSummaryWindow
	}

	turns := GroupTurns(exchanges)
	if len(turns) == 0 {
		return NoHistory
	}
	if len(turns) > window {
		turns = turns[len(turns)-window:]
	}

	flat := make([]Exchange, 0, len(turns)*2)
	for _, t := range turns {
		if t.Player != nil {
			flat = append(flat, *t.Player)
		}
		if t.Narrator != nil {
			flat = append(flat, *t.Narrator)
		}
	}
	return Serialize("", flat)
}
