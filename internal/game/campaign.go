package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/Yates-Labs/aethel/internal/store"
	"github.com/Yates-Labs/aethel/internal/transcript"
)

// Campaign holds the three files a session is bootstrapped from.
type Campaign struct {
	Lore         string
	Instructions string

	// Story is the transcript document; its Version is empty when the story
	// file did not exist yet.
	Story store.Document

	// Warnings lists files that were missing and replaced by defaults.
	Warnings []string
}

// LoadCampaign reads the lore, instructions and story files from s.
//
// Missing files fall back to the built-in defaults and add a warning. Any
// other failure reading the story aborts, since saving over a story that
// could not be read would lose it. Lore and instructions degrade to their
// defaults on any error.
func LoadCampaign(ctx context.Context, s store.Store) (*Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before loading campaign: %w", err)
	}

	c := &Campaign{}

	story, err := s.Read(ctx, store.StoryFile)
	switch {
	case err == nil:
		c.Story = story
	case errors.Is(err, store.ErrNotFound):
		c.Story = store.Document{Path: store.StoryFile, Content: transcript.DefaultStory}
		c.warn(store.StoryFile, err)
	default:
		return nil, fmt.Errorf("failed to load %s: %w", store.StoryFile, err)
	}

	c.Lore = c.optional(ctx, s, store.LoreFile, transcript.DefaultLore)
	c.Instructions = c.optional(ctx, s, store.InstructionsFile, transcript.DefaultInstructions)

	return c, nil
}

// ContextPrompt builds the bootstrap prompt for this campaign.
func (c *Campaign) ContextPrompt() string {
	return transcript.LoadContext(c.Lore, c.Instructions, c.Story.Content)
}

func (c *Campaign) optional(ctx context.Context, s store.Store, path, fallback string) string {
	doc, err := s.Read(ctx, path)
	if err != nil {
		c.warn(path, err)
		return fallback
	}
	return doc.Content
}

func (c *Campaign) warn(path string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%q not found. Continuing without it.", path))
		return
	}
	c.Warnings = append(c.Warnings, fmt.Sprintf("%q could not be read (%v). Using the built-in default.", path, err))
}
