package rag

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Section is the text under one heading of the lore document.
type Section struct {
	Heading    string
	Paragraphs []string
}

// blockElements end the current paragraph.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Br: true,
	atom.Blockquote: true, atom.Pre: true, atom.Tr: true, atom.Dd: true,
	atom.Dt: true, atom.Section: true, atom.Article: true, atom.Table: true,
}

var headingElements = map[atom.Atom]bool{
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

// ExtractSections parses an HTML lore document into heading-delimited
// sections of plain-text paragraphs. Script and style content is dropped.
func ExtractSections(doc string) ([]Section, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse lore: %w", err)
	}

	var (
		sections []Section
		current  Section
		para     strings.Builder
	)

	endParagraph := func() {
		text := strings.Join(strings.Fields(para.String()), " ")
		para.Reset()
		if text != "" {
			current.Paragraphs = append(current.Paragraphs, text)
		}
	}
	endSection := func() {
		endParagraph()
		if len(current.Paragraphs) > 0 {
			sections = append(sections, current)
		}
		current = Section{}
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.DataAtom == atom.Script || n.DataAtom == atom.Style || n.DataAtom == atom.Head:
				return
			case headingElements[n.DataAtom]:
				endSection()
				current.Heading = strings.Join(strings.Fields(textContent(n)), " ")
				return
			case blockElements[n.DataAtom]:
				endParagraph()
				defer endParagraph()
			}
		}
		if n.Type == html.TextNode {
			para.WriteString(n.Data)
			para.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	endSection()

	return sections, nil
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
		b.WriteByte(' ')
	}
	return b.String()
}

// ChunkSections packs paragraphs into chunks of at most maxChars characters,
// never crossing a section boundary. A single paragraph longer than maxChars
// is split on word boundaries.
func ChunkSections(sections []Section, maxChars int) []LoreChunk {
	if maxChars <= 0 {
		maxChars = DefaultIndexOptions().MaxChunkChars
	}

	var chunks []LoreChunk
	emit := func(heading, text string) {
		chunks = append(chunks, LoreChunk{
			ID:      chunkID(heading, text),
			Heading: heading,
			Text:    text,
			Ordinal: len(chunks),
		})
	}

	for _, s := range sections {
		var b strings.Builder
		for _, p := range s.Paragraphs {
			for _, piece := range splitWords(p, maxChars) {
				if b.Len() > 0 && b.Len()+2+len(piece) > maxChars {
					emit(s.Heading, b.String())
					b.Reset()
				}
				if b.Len() > 0 {
					b.WriteString("\n\n")
				}
				b.WriteString(piece)
			}
		}
		if b.Len() > 0 {
			emit(s.Heading, b.String())
		}
	}
	return chunks
}

// ChunkLore extracts and chunks an HTML lore document.
func ChunkLore(doc string, maxChars int) ([]LoreChunk, int, error) {
	sections, err := ExtractSections(doc)
	if err != nil {
		return nil, 0, err
	}
	chunks := ChunkSections(sections, maxChars)
	if len(chunks) == 0 {
		return nil, len(sections), ErrNoLore
	}
	return chunks, len(sections), nil
}

func splitWords(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}
	var (
		out []string
		b   strings.Builder
	)
	for _, w := range strings.Fields(text) {
		if b.Len() > 0 && b.Len()+1+len(w) > maxChars {
			out = append(out, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

func chunkID(heading, text string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(heading+"\x00"+text)).String()
}
