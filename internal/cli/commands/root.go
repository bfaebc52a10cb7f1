package commands

import (
	"github.com/spf13/cobra"

	"github.com/danielbwilkinson/jargon-rag/internal/cli"
)

// RootCmd assembles the jargonrag command tree.
func RootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "jargonrag",
		Short: "Question answering over a linked note vault",
		Long: `jargonrag answers questions from a vault of linked Markdown notes. Notes are
found by embedding similarity, by the jargon in the question, and by following
wiki-links, then filtered by the language model before answering.

Configuration is read from JARGONRAG_* environment variables and .env.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().Bool("debug", false, "Log every pipeline stage")
	cli.AddHelpJSONFlag(root)

	root.AddCommand(ChatCmd())
	root.AddCommand(AskCmd())
	root.AddCommand(RetrieveCmd())
	root.AddCommand(IngestCmd())
	root.AddCommand(ServeCmd())

	return root
}
