package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/falk/mar/pkg/index"
	"github.com/falk/mar/pkg/pack"
	"github.com/falk/mar/pkg/planner"
)

func newCreateCommand() *cobra.Command {
	var (
		input    string
		output   string
		jobs     int
		dedup    bool
		lz4Small bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Pack a directory tree into a .mar.dat/.mar.idx archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" || output == "" {
				return fmt.Errorf("create: --input and --output are required")
			}

			datPath := output + ".mar.dat"
			idxPath := output + ".mar.idx"

			datFile, err := os.Create(datPath)
			if err != nil {
				return fmt.Errorf("create: open %s: %w", datPath, err)
			}
			defer datFile.Close()

			policy := planner.PolicyZstdOnly
			if lz4Small {
				policy = planner.PolicyLZ4SmallFiles
			}

			encStart := time.Now()
			idx, err := pack.Pack(input, datFile, pack.Options{
				Jobs:   jobs,
				Dedup:  dedup,
				Policy: policy,
				Progress: func(line string) {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				},
			})
			if err != nil {
				return fmt.Errorf("create: pack: %w", err)
			}
			encMs := time.Since(encStart).Milliseconds()

			idxFile, err := os.Create(idxPath)
			if err != nil {
				return fmt.Errorf("create: open %s: %w", idxPath, err)
			}
			defer idxFile.Close()

			// dec_ms covers the finalize step: sorting entries by path
			// and writing the index, matching the reference builder's
			// finalize timing window.
			decStart := time.Now()
			finalized := pack.Finalize(idx)
			if err := index.Write(idxFile, finalized); err != nil {
				return fmt.Errorf("create: write index: %w", err)
			}
			decMs := time.Since(decStart).Milliseconds()

			fmt.Fprintf(cmd.OutOrStdout(), "%d,%d\n", encMs, decMs)
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "input directory to pack")
	cmd.Flags().StringVar(&output, "output", "", "output archive base path")
	cmd.Flags().IntVar(&jobs, "jobs", 1, "number of packer worker goroutines")
	cmd.Flags().BoolVar(&dedup, "dedup", false, "deduplicate identical file bodies")
	cmd.Flags().BoolVar(&lz4Small, "lz4-small-files", false, "prefer LZ4 for small single-chunk files (spec.md §9 variant)")

	return cmd
}
