package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielbwilkinson/jargon-rag/internal/service"
)

func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load a note vault into the graph",
		Long: `Read every note in the vault, embed it and create one node per note with
an edge per wiki-link. The vault is the --vault directory, else the S3 bucket
in JARGONRAG_VAULT_S3_BUCKET, else JARGONRAG_VAULT_DIR.`,
		Args: cobra.NoArgs,
		RunE: runIngest,
	}

	cmd.Flags().String("vault", "", "Vault directory (overrides configuration)")
	cmd.Flags().Bool("nuke", false, "Delete every existing note and the vector index first")
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation before --nuke")
	cmd.Flags().Int("batch-size", service.DefaultIngestConfig().BatchSize, "Notes per embedding request")
	cmd.Flags().Int("concurrency", service.DefaultIngestConfig().Concurrency, "Embedding requests in flight")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	nuke, _ := cmd.Flags().GetBool("nuke")
	yes, _ := cmd.Flags().GetBool("yes")

	if nuke && !yes {
		ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "This deletes every note in the graph. Continue?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "aborted")
			return nil
		}
	}

	a, err := newApp(cmd, appOptions{migrate: true})
	if err != nil {
		return err
	}
	defer a.Close()

	dir, _ := cmd.Flags().GetString("vault")
	source, err := vaultSource(cmd.Context(), a.cfg, dir)
	if err != nil {
		return err
	}

	batchSize, _ := cmd.Flags().GetInt("batch-size")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	svc := service.NewIngestService(source, a.graph, a.llm, service.IngestConfig{
		BatchSize:   batchSize,
		Concurrency: concurrency,
	}, a.logger)

	report, err := svc.Ingest(cmd.Context(), service.IngestOptions{Nuke: nuke})
	if err != nil {
		a.logger.Error("ingestion failed", zap.Error(err))
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Notes created:      %d\n", report.NotesCreated)
	fmt.Fprintf(out, "Duplicates skipped: %d\n", len(report.DuplicatesSkipped))
	fmt.Fprintf(out, "Links created:      %d\n", report.LinksCreated)
	fmt.Fprintf(out, "Unresolved links:   %d\n", report.LinksUnresolved)
	fmt.Fprintf(out, "Embedding size:     %d\n", report.Dimensions)
	return nil
}

// confirm asks a y/N question. Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
