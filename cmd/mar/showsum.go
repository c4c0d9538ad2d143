package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/falk/mar/pkg/index"
)

func newShowsumCommand() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "showsum",
		Short: "Print each entry's SHA-256 and path from an archive's index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return fmt.Errorf("showsum: --input is required")
			}

			idxPath := idxPathFor(input)
			f, err := os.Open(idxPath)
			if err != nil {
				return fmt.Errorf("showsum: open %s: %w", idxPath, err)
			}
			defer f.Close()

			idx, err := index.Read(f)
			if err != nil {
				return fmt.Errorf("showsum: read index: %w", err)
			}

			for _, e := range idx.Entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", hex.EncodeToString(e.Info.OriginalSHA256), e.Info.Path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "archive base path or .mar.idx path")
	return cmd
}

// idxPathFor accepts either a base path or a full .mar.idx path (spec.md
// §6: "showsum and split accept the base without suffix and append as
// needed").
func idxPathFor(input string) string {
	if strings.HasSuffix(input, ".mar.idx") {
		return input
	}
	return input + ".mar.idx"
}
