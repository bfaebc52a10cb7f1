package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
	"github.com/danielbwilkinson/jargon-rag/internal/service"
)

func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			historyPath, _ := cmd.Flags().GetString("history")
			history, err := loadHistory(afero.NewOsFs(), historyPath)
			if err != nil {
				return err
			}

			a, err := newApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.pipeline.Answer(cmd.Context(), service.AnswerInput{
				Query:   strings.Join(args, " "),
				History: history,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(res.Answer))
			return nil
		},
	}

	cmd.Flags().String("history", "", "JSON file with earlier turns: [{\"role\":\"user\",\"message\":\"...\"}, ...]")

	return cmd
}

func RetrieveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Print the context that would accompany a question",
		Long: `Run retrieval without generating an answer. Prints the assembled context
as a JSON array of {title, text} objects, or the full trace with --trace.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			historyPath, _ := cmd.Flags().GetString("history")
			history, err := loadHistory(afero.NewOsFs(), historyPath)
			if err != nil {
				return err
			}

			a, err := newApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			budget := retrieveBudget(cmd.Flags(), func() int {
				return a.pipeline.ContextBudget(history)
			})

			res, err := a.pipeline.Retrieve(cmd.Context(), service.RetrieveInput{
				Query:   strings.Join(args, " "),
				History: history,
				Budget:  budget,
			})
			if err != nil {
				return err
			}

			if trace, _ := cmd.Flags().GetBool("trace"); trace {
				return printJSON(cmd, retrieveTrace(res, budget))
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Context.JSON)
			return nil
		},
	}

	cmd.Flags().String("history", "", "JSON file with earlier turns")
	cmd.Flags().Int("budget", 0, "Token budget for the context; zero or less empties it (default: what an answer prompt would leave)")
	cmd.Flags().Bool("trace", false, "Print the titles found at every stage")

	return cmd
}

// retrieveBudget returns --budget when it was given, any value included,
// and the fallback otherwise.
func retrieveBudget(flags *pflag.FlagSet, fallback func() int) int {
	if !flags.Changed("budget") {
		return fallback()
	}
	budget, _ := flags.GetInt("budget")
	return budget
}

type traceOutput struct {
	Query       string          `json:"query"`
	Budget      int             `json:"budget"`
	Semantic    []string        `json:"semantic"`
	JargonWords []string        `json:"jargon_words"`
	Jargon      []string        `json:"jargon"`
	Linked      []string        `json:"linked"`
	Candidates  []string        `json:"candidates"`
	Selected    []string        `json:"selected"`
	Context     json.RawMessage `json:"context"`
	Tokens      int             `json:"tokens"`
	Truncated   bool            `json:"truncated"`
}

func retrieveTrace(res *service.RetrieveOutput, budget int) traceOutput {
	t := traceOutput{
		Query:      res.Query,
		Budget:     budget,
		Candidates: res.Candidates,
		Selected:   res.Selected,
		Context:    json.RawMessage(res.Context.JSON),
		Tokens:     res.Context.Tokens,
		Truncated:  res.Context.Truncated,
	}
	if g := res.Gathered; g != nil {
		t.Semantic = g.Semantic
		t.JargonWords = g.JargonWords
		t.Jargon = g.Jargon
		t.Linked = g.Linked
	}
	return t
}

// loadHistory reads a conversation from a JSON file. An empty path means no
// history.
func loadHistory(fs afero.Fs, path string) ([]domain.Message, error) {
	if path == "" {
		return nil, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var history []domain.Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse history %s: %w", path, err)
	}
	if err := domain.ValidateHistory(history); err != nil {
		return nil, err
	}
	return history, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

