package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/Yates-Labs/aethel/internal/transcript"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportFile   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the saved story as JSON or markdown",
	Long: `Read "Story so far.txt" from the story store and export it turn by turn.

Examples:
  aethel export
  aethel export --format json --output story.json`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", string(transcript.FormatMarkdown), "Export format: json or markdown")
	exportCmd.Flags().StringVarP(&exportFile, "output", "o", "", "Write to a file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd.Context(), app.cfg, app.logger)
	if err != nil {
		return err
	}
	story, err := readStory(cmd, s)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportFile != "" {
		file, err := os.Create(exportFile)
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		defer file.Close()
		w = file
	}

	if err := transcript.ExportStory(story, exportFormat, w); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if exportFile != "" {
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Exported story to "+exportFile))
	}
	return nil
}
