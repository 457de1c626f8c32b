package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/Yates-Labs/aethel/internal/journal"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var sessionLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List journaled play sessions",
	Long: `List the sessions recorded in the local journal, most recent first.

Each row shows:
- Session ID
- Provider and story backend
- Number of exchanges, and how many are not yet saved
- Last activity

Examples:
  aethel sessions
  aethel sessions --limit 5`,
	Args: cobra.NoArgs,
	RunE: runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.Flags().IntVar(&sessionLimit, "limit", 20, "Maximum number of sessions to list")
}

func runSessions(cmd *cobra.Command, args []string) error {
	j, err := openJournal(app.cfg)
	if err != nil {
		return err
	}
	if j == nil {
		return fmt.Errorf("the session journal is disabled (AETHEL_JOURNAL is empty)")
	}

	sessions, err := j.List(cmd.Context(), sessionLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded yet")
		return nil
	}
	outputSessionTable(cmd.OutOrStdout(), sessions)
	return nil
}

func outputSessionTable(w io.Writer, sessions []journal.Summary) {
	var (
		idColor     = lipgloss.Color("#BD93F9") // Purple
		numberColor = lipgloss.Color("#FF79C6") // Pink
		dateColor   = lipgloss.Color("#E9E9F4") // Light purple/white
		borderColor = lipgloss.Color("#6272A4") // Muted purple
	)

	// Column widths
	const (
		idWidth      = 38
		sourceWidth  = 20
		countWidth   = 12
		unsavedWidth = 10
		dateWidth    = 16
	)

	cellHeader := headerStyle.Padding(0, 1)
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	headers := []string{
		cellHeader.Width(idWidth).Render("SESSION"),
		cellHeader.Width(sourceWidth).Render("SOURCE"),
		cellHeader.Width(countWidth).Render("EXCHANGES"),
		cellHeader.Width(unsavedWidth).Render("UNSAVED"),
		cellHeader.Width(dateWidth).Render("LAST PLAYED"),
	}
	fmt.Fprintln(w, strings.Join(headers, borderStyle.Render("│")))

	separatorParts := []string{
		strings.Repeat("─", idWidth),
		strings.Repeat("─", sourceWidth),
		strings.Repeat("─", countWidth),
		strings.Repeat("─", unsavedWidth),
		strings.Repeat("─", dateWidth),
	}
	fmt.Fprintln(w, borderStyle.Render(strings.Join(separatorParts, "┼")))

	idStyle := lipgloss.NewStyle().Foreground(idColor).Padding(0, 1).Width(idWidth)
	sourceStyle := lipgloss.NewStyle().Foreground(dateColor).Padding(0, 1).Width(sourceWidth)
	countStyle := lipgloss.NewStyle().Foreground(numberColor).Padding(0, 1).Width(countWidth).Align(lipgloss.Right)
	unsavedStyle := countStyle.Width(unsavedWidth)
	dateStyle := lipgloss.NewStyle().Foreground(dateColor).Padding(0, 1).Width(dateWidth)

	unsavedTotal := 0
	for _, s := range sessions {
		unsaved := s.Exchanges - s.SavedLen
		if s.Unsaved() {
			unsavedTotal++
		}
		cells := []string{
			idStyle.Render(s.ID),
			sourceStyle.Render(s.Provider + "/" + s.Backend),
			countStyle.Render(fmt.Sprintf("%d", s.Exchanges)),
			unsavedStyle.Render(fmt.Sprintf("%d", unsaved)),
			dateStyle.Render(s.UpdatedAt.Local().Format("Jan 02, 15:04")),
		}
		fmt.Fprintln(w, strings.Join(cells, borderStyle.Render("│")))
	}

	fmt.Fprintln(w)
	summary := fmt.Sprintf("Total: %d sessions, %d with unsaved turns", len(sessions), unsavedTotal)
	fmt.Fprintln(w, playerStyle.Render(summary))
}
