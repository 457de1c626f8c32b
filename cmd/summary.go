package cmd

import (
	"errors"
	"fmt"

	"github.com/Yates-Labs/aethel/internal/store"
	"github.com/Yates-Labs/aethel/internal/transcript"
	"github.com/spf13/cobra"
)

var (
	summaryWindow int
	byTurns       bool
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the most recent part of the saved story",
	Long: `Read "Story so far.txt" from the story store and show its last segments.

By default the story is split on its Player: labels. With --turns the story is
parsed into player and DM turns first, which copes with labels that appear
inside the text.

Examples:
  aethel summary
  aethel summary --window 3
  aethel summary --turns`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().IntVar(&summaryWindow, "window", 0, "Number of segments to show (default AETHEL_SUMMARY_WINDOW)")
	summaryCmd.Flags().BoolVar(&byTurns, "turns", false, "Window over parsed turns instead of raw segments")
}

func runSummary(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := app.cfg

	s, err := openStore(ctx, cfg, app.logger)
	if err != nil {
		return err
	}
	story, err := readStory(cmd, s)
	if err != nil {
		return err
	}

	window := summaryWindow
	if window <= 0 {
		window = cfg.SummaryWindow
	}

	var text string
	if byTurns {
		_, exchanges := transcript.Parse(story)
		text = transcript.SummarizeTurns(exchanges, window)
	} else {
		text = transcript.Summarize(story, window)
	}

	fmt.Fprintln(cmd.OutOrStdout(), narratorStyle.Render(text))
	return nil
}

// readStory returns the saved story, or an empty story when the file does not
// exist yet.
func readStory(cmd *cobra.Command, s store.Store) (string, error) {
	doc, err := s.Read(cmd.Context(), store.StoryFile)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintln(cmd.ErrOrStderr(), warningStyle.Render(fmt.Sprintf("Warning: %q not found.", store.StoryFile)))
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", store.StoryFile, err)
	}
	return doc.Content, nil
}
