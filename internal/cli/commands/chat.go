package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielbwilkinson/jargon-rag/internal/service"
)

// answerer is the part of the pipeline the chat loop needs.
type answerer interface {
	Answer(ctx context.Context, input service.AnswerInput) (*service.AnswerOutput, error)
}

func ChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant over your notes",
		Long: `Start an interactive session. Each answer draws on notes retrieved for the
current question and the conversation so far. Type "exit" or press Ctrl-D to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			return runChat(cmd.Context(), a.pipeline, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// runChat reads one query per line. A turn joins the history only once its
// answer is complete; a failed turn is reported and forgotten.
func runChat(ctx context.Context, p answerer, in io.Reader, out, errOut io.Writer) error {
	session := service.NewSession()
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		query := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(query) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		res, err := p.Answer(ctx, service.AnswerInput{Query: query, History: session.Messages()})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(errOut, "error: %v\n", err)
			continue
		}

		fmt.Fprintf(out, "\n%s\n\n", strings.TrimSpace(res.Answer))
		session.Exchange(query, res.Answer)
	}
}
