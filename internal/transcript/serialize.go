package transcript

import (
	"strings"
)

const (
	PlayerLabel   = "Player:"
	NarratorLabel = "DM:"
)

// Serialize renders the canonical save string: the initial story followed by
// one labelled block per non-empty exchange, in insertion order. The result
// is trimmed of trailing whitespace, so serializing a freshly loaded save with
// no new exchanges reproduces it unchanged.
func Serialize(initialStory string, log []Exchange) string {
	var b strings.Builder

	if story := strings.TrimSpace(initialStory); story != "" {
		b.WriteString(story)
		b.WriteString("\n\n")
	}

	for _, ex := range log {
		if ex.IsEmpty() {
			continue
		}
		label := ex.Role.Label()
		if label == "" {
			continue
		}
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(ex.Text())
		b.WriteString("\n\n")
	}

	return strings.TrimRight(b.String(), " \t\r\n")
}

// Parse recovers typed exchanges from a story transcript. A label is only
// recognised when it stands alone on its own line, so message bodies
// that mention "Player:" mid-sentence are not split. Text before the first
// label is returned as the preamble.
func Parse(story string) (preamble string, exchanges []Exchange) {
	lines := strings.Split(strings.ReplaceAll(story, "\r\n", "\n"), "\n")

	var (
		current *Exchange
		body    []string
		pre     []string
	)

	flush := func() {
		if current == nil {
			return
		}
		text := strings.TrimSpace(strings.Join(body, "\n"))
		current.Parts = nil
		if text != "" {
			current.Parts = []string{text}
		}
		exchanges = append(exchanges, *current)
		current = nil
		body = nil
	}

	for _, line := range lines {
		role, ok := labelledLine(line)
		if !ok {
			if current == nil {
				pre = append(pre, line)
			} else {
				body = append(body, line)
			}
			continue
		}

		flush()
		current = &Exchange{Role: role}
	}
	flush()

	return strings.TrimSpace(strings.Join(pre, "\n")), exchanges
}

// labelledLine reports whether line opens a new labelled block.
func labelledLine(line string) (Role, bool) {
	switch strings.TrimSpace(line) {
	case PlayerLabel:
		return RolePlayer, true
	case NarratorLabel:
		return RoleNarrator, true
	}
	return "", false
}
