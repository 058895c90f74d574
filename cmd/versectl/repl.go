package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// showPrompt is false when queries are piped in from a file or another
// process, so the output holds only results.
func showPrompt(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return true
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newReplCmd(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Search interactively; an empty line exits",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.engine(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			prompt := showPrompt(cmd.InOrStdin())
			in := bufio.NewScanner(cmd.InOrStdin())
			for {
				if prompt {
					fmt.Fprint(out, "\nSearch verses: ")
				}
				if !in.Scan() {
					return in.Err()
				}
				query := strings.TrimSpace(in.Text())
				if query == "" {
					return nil
				}
				hits, err := e.search(cmd.Context(), query, limit)
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "search failed:", err)
					continue
				}
				if err := printHits(out, hits, false); err != nil {
					return err
				}
			}
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of results (default from config)")
	return cmd
}
