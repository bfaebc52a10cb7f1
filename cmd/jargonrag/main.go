package main

import (
	"context"
	"fmt"
	"os"

	"github.com/danielbwilkinson/jargon-rag/internal/cli"
	"github.com/danielbwilkinson/jargon-rag/internal/cli/commands"
)

var version = "dev"

func main() {
	rootCmd := commands.RootCmd(version)

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "chat")
	}

	if handled, err := cli.HelpJSON(rootCmd, os.Args[1:], os.Stdout); handled {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
