package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Yates-Labs/aethel/internal/game"
	"github.com/Yates-Labs/aethel/internal/journal"
	"github.com/Yates-Labs/aethel/internal/narrative"
	"github.com/Yates-Labs/aethel/internal/store"
	"github.com/Yates-Labs/aethel/internal/transcript"
	"github.com/spf13/cobra"
)

var resumeID string

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start or resume an adventure",
	Long: `Start an interactive session. The story so far, the lore and the DM
instructions are read once from the story store; missing files fall back to
built-in defaults.

Type an action to continue the story, or one of:
  /undo            remove the last turn
  /regenerate      ask for a new reply to the last action
  /save            write the story back to the store
  /summary [n]     show the last n segments of the story
  /turns [n]       show the last n turns of this session
  /lore <query>    recall matching lore passages
  /help            list commands
  /quit            leave (asks again if there are unsaved changes)

Examples:
  aethel play
  aethel play --resume
  aethel play --resume 1b4e28ba-2fa1-11d2-883f-0016d3cca427`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().StringVar(&resumeID, "resume", "", "Resume a journaled session by ID, or the latest one when no ID is given")
	playCmd.Flags().Lookup("resume").NoOptDefVal = "last"
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger := app.cfg, app.logger

	s, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	narrator, err := newNarrator(cfg, logger)
	if err != nil {
		return err
	}

	opts := game.Options{Logger: logger}
	j, err := openJournal(cfg)
	if err != nil {
		// The game still works without a journal.
		logger.Warn("journal unavailable", "path", cfg.JournalPath, "error", err)
		fmt.Fprintln(cmd.ErrOrStderr(), warningStyle.Render("Warning: session journal unavailable, progress is only kept by /save."))
	} else if j != nil {
		opts.Journal = j
	}

	g, err := startGame(ctx, cmd, s, narrator, j, opts)
	if err != nil {
		return err
	}

	r := &repl{
		game:   g,
		in:     newInputScanner(cmd.InOrStdin()),
		out:    cmd.OutOrStdout(),
		window: cfg.SummaryWindow,
		lore:   loreLookup(cfg),
	}
	return r.run(ctx)
}

func startGame(ctx context.Context, cmd *cobra.Command, s store.Store, n *narrative.Narrator, j *journal.Journal, opts game.Options) (*game.Game, error) {
	if !cmd.Flags().Changed("resume") {
		return game.Bootstrap(ctx, s, n, opts)
	}
	if j == nil {
		return nil, errors.New("--resume needs the session journal (AETHEL_JOURNAL)")
	}

	id := resumeID
	if id == "last" {
		latest, err := j.Latest(ctx)
		if err != nil {
			return nil, err
		}
		id = latest
	}
	return game.Resume(ctx, s, n, id, opts)
}

// maxInputLine bounds a single line of player input.
const maxInputLine = 1 << 20

func newInputScanner(in io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxInputLine)
	return sc
}

// repl reads player input line by line and drives a game.
type repl struct {
	game   *game.Game
	in     *bufio.Scanner
	out    io.Writer
	window int

	// lore answers /lore queries; nil when recall is not configured
	lore func(ctx context.Context, query string) (string, error)

	confirmQuit bool
}

func (r *repl) run(ctx context.Context) error {
	r.intro()

	for {
		fmt.Fprint(r.out, playerStyle.Render("> "))
		if !r.in.Scan() {
			break
		}
		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := r.command(ctx, line)
			if err != nil {
				r.printError(err)
			}
			if quit {
				return nil
			}
			continue
		}

		r.confirmQuit = false
		out, err := r.game.Play(ctx, line)
		r.printOutcome(out, err)
	}

	if err := r.in.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if r.game.Dirty() {
		fmt.Fprintln(r.out, warningStyle.Render("Input closed with unsaved changes; resume later with `aethel play --resume`."))
	}
	return nil
}

func (r *repl) intro() {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, headerStyle.Render("The world of Aethel"))
	for _, w := range r.game.Warnings() {
		fmt.Fprintln(r.out, warningStyle.Render("Warning: "+w))
	}

	if story := r.game.Story(); story != "" {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, systemStyle.Render("Story so far:"))
		fmt.Fprintln(r.out, narratorStyle.Render(r.game.Summary(1)))
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, narratorStyle.Render(r.game.Session().Acknowledgement.Text()))
	fmt.Fprintln(r.out, systemStyle.Render("Type /help for commands."))
	fmt.Fprintln(r.out)
}

// command handles a slash command and reports whether the loop should end.
func (r *repl) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	if name != "/quit" && name != "/exit" {
		r.confirmQuit = false
	}

	switch name {
	case "/undo":
		if err := r.game.Undo(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, systemStyle.Render("The last turn fades from memory."))

	case "/regenerate", "/retry":
		out, err := r.game.Regenerate(ctx)
		if errors.Is(err, transcript.ErrNothingToRegenerate) {
			return false, errors.New("there is no action to regenerate yet")
		}
		r.printOutcome(out, err)

	case "/save":
		if _, err := r.game.Save(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, successStyle.Render("✓ Story saved to "+quoteStoryFile()))

	case "/summary":
		window, err := windowArg(arg, r.window)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, narratorStyle.Render(r.game.Summary(window)))

	case "/turns":
		window, err := windowArg(arg, r.window)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, narratorStyle.Render(r.game.TurnSummary(window)))

	case "/lore":
		if arg == "" {
			return false, errors.New("usage: /lore <query>")
		}
		if r.lore == nil {
			return false, errors.New("lore recall is not configured (needs OPENAI_API_KEY and MILVUS_ADDRESS)")
		}
		text, err := r.lore(ctx, arg)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, systemStyle.Render(text))

	case "/help":
		fmt.Fprintln(r.out, systemStyle.Render(helpText))

	case "/quit", "/exit":
		if r.game.Dirty() && !r.confirmQuit {
			r.confirmQuit = true
			fmt.Fprintln(r.out, warningStyle.Render("You have unsaved changes. Type /save first, or /quit again to leave without saving."))
			return false, nil
		}
		fmt.Fprintln(r.out, systemStyle.Render("Farewell, adventurer."))
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

func (r *repl) printOutcome(out narrative.Outcome, err error) {
	if err != nil {
		if errors.Is(err, narrative.ErrTransientProvider) {
			fmt.Fprintln(r.out, warningStyle.Render(out.Message))
			return
		}
		r.printError(err)
		return
	}

	switch out.Kind {
	case narrative.KindOK:
		fmt.Fprintln(r.out, narratorStyle.Render(out.Reply))
	case narrative.KindBlocked:
		fmt.Fprintln(r.out, narratorStyle.Render(out.Reply))
		fmt.Fprintln(r.out, systemStyle.Render("(The reply was withheld. Try /undo and another approach.)"))
	case narrative.KindFatal:
		fmt.Fprintln(r.out, errorStyle.Render(out.Reply))
	default:
		fmt.Fprintln(r.out, narratorStyle.Render(out.Reply))
	}
	fmt.Fprintln(r.out)
}

func (r *repl) printError(err error) {
	fmt.Fprintln(r.out, errorStyle.Render("Error:"), err)
}

func windowArg(arg string, fallback int) (int, error) {
	if arg == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid window %q", arg)
	}
	return n, nil
}

func quoteStoryFile() string {
	return strconv.Quote(store.StoryFile)
}

const helpText = `/undo            remove the last turn
/regenerate      ask for a new reply to the last action
/save            write the story back to the store
/summary [n]     show the last n segments of the story
/turns [n]       show the last n turns of this session
/lore <query>    recall matching lore passages
/quit            leave`
