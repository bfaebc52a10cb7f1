// Package cli describes the jargonrag command tree as JSON so scripts can
// discover commands and flags without scraping --help text.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const helpJSONFlag = "help-json"

type FlagSchema struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Global      bool   `json:"global,omitempty"`
}

type CommandSchema struct {
	Name        string          `json:"name"`
	Path        string          `json:"path"`
	Use         string          `json:"use,omitempty"`
	Description string          `json:"description,omitempty"`
	Long        string          `json:"long,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

// Describe builds the schema of cmd and every visible subcommand. Flags a
// command inherits from its parents are listed with Global set.
func Describe(cmd *cobra.Command) CommandSchema {
	schema := CommandSchema{
		Name:        cmd.Name(),
		Path:        cmd.CommandPath(),
		Use:         cmd.Use,
		Description: cmd.Short,
		Long:        cmd.Long,
	}

	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if skipFlag(f) {
			return
		}
		schema.Flags = append(schema.Flags, describeFlag(f, false))
	})
	cmd.InheritedFlags().VisitAll(func(f *pflag.Flag) {
		if skipFlag(f) {
			return
		}
		schema.Flags = append(schema.Flags, describeFlag(f, true))
	})

	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() {
			continue
		}
		schema.Subcommands = append(schema.Subcommands, Describe(sub))
	}

	return schema
}

func skipFlag(f *pflag.Flag) bool {
	return f.Hidden || f.Name == helpJSONFlag || f.Name == "help"
}

func describeFlag(f *pflag.Flag, global bool) FlagSchema {
	schema := FlagSchema{
		Name:        f.Name,
		Shorthand:   f.Shorthand,
		Type:        f.Value.Type(),
		Default:     f.DefValue,
		Description: f.Usage,
		Global:      global,
	}
	// MarkFlagRequired annotates the flag itself, not the command.
	if v, ok := f.Annotations[cobra.BashCompOneRequiredFlag]; ok && len(v) > 0 && v[0] == "true" {
		schema.Required = true
	}
	return schema
}

// AddHelpJSONFlag registers --help-json on cmd and all its descendants.
func AddHelpJSONFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool(helpJSONFlag, false, "Print the command schema as JSON")
}

// HelpJSON checks args (without the program name) for --help-json. When it
// is present the schema of the addressed command is written to w and
// handled is true. It runs before cobra parses args so that required
// positionals and flags do not get in the way.
func HelpJSON(root *cobra.Command, args []string, w io.Writer) (handled bool, err error) {
	if !wantsHelpJSON(args) {
		return false, nil
	}

	out, err := json.MarshalIndent(Describe(resolveCommand(root, args)), "", "  ")
	if err != nil {
		return true, fmt.Errorf("encode command schema: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return true, err
}

func wantsHelpJSON(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}
		if arg == "--"+helpJSONFlag || arg == "--"+helpJSONFlag+"=true" {
			return true
		}
	}
	return false
}

// resolveCommand walks args the way cobra would: flag tokens (and the value
// of a flag that takes one) are skipped, the first word that is not a
// subcommand ends the walk.
func resolveCommand(root *cobra.Command, args []string) *cobra.Command {
	cmd := root
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if strings.HasPrefix(arg, "-") && len(arg) > 1 {
			if flagTakesValue(cmd, arg) {
				i++
			}
			continue
		}

		sub := findSubcommand(cmd, arg)
		if sub == nil {
			break
		}
		cmd = sub
	}
	return cmd
}

func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, sub := range cmd.Commands() {
		if sub.Name() == name || sub.HasAlias(name) {
			return sub
		}
	}
	return nil
}

// flagTakesValue reports whether the flag token consumes the next argument.
func flagTakesValue(cmd *cobra.Command, arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}

	var f *pflag.Flag
	if name, ok := strings.CutPrefix(arg, "--"); ok {
		f = lookupFlag(cmd, name)
	} else {
		short := strings.TrimPrefix(arg, "-")
		if len(short) != 1 {
			// -p8080 or grouped booleans
			return false
		}
		f = cmd.Flags().ShorthandLookup(short)
		if f == nil {
			f = cmd.InheritedFlags().ShorthandLookup(short)
		}
	}

	return f != nil && f.NoOptDefVal == ""
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	return cmd.InheritedFlags().Lookup(name)
}
