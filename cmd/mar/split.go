package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/falk/mar/pkg/index"
	"github.com/falk/mar/pkg/split"
)

func newSplitCommand() *cobra.Command {
	var (
		input string
		count int
	)

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Redistribute an archive's entries across N balanced shards",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return fmt.Errorf("split: --input is required")
			}
			if count < 1 {
				return fmt.Errorf("split: --count must be at least 1")
			}

			// Matches the reference splitter's literal suffixes: the
			// source archive is read as <base>.idx/<base>.dat (not
			// <base>.mar.idx/<base>.mar.dat), while shard outputs use the
			// .split.k.mar.{idx,dat} convention below.
			idxFile, err := os.Open(input + ".idx")
			if err != nil {
				return fmt.Errorf("split: open %s.idx: %w", input, err)
			}
			defer idxFile.Close()

			idx, err := index.Read(idxFile)
			if err != nil {
				return fmt.Errorf("split: read index: %w", err)
			}

			srcDatFile, err := os.Open(input + ".dat")
			if err != nil {
				return fmt.Errorf("split: open %s.dat: %w", input, err)
			}
			defer srcDatFile.Close()

			newDataFile := func(k int) (io.WriteCloser, error) {
				return os.Create(fmt.Sprintf("%s.split.%d.mar.dat", input, k))
			}

			results, err := split.Split(srcDatFile, idx.Entries, count, newDataFile)
			if err != nil {
				return fmt.Errorf("split: %w", err)
			}

			var totalSize uint64
			for i := len(results) - 1; i >= 0; i-- {
				r := results[i]
				shardSize := shardWeight(r.Data)
				totalSize += shardSize
				fmt.Fprintf(cmd.OutOrStdout(), "Writing file %d, %dMB\n", r.Index, shardSize/1024/1024)
				fmt.Fprintf(cmd.OutOrStdout(), "Total size: %d MB\n", totalSize/1024/1024)

				idxOut, err := os.Create(fmt.Sprintf("%s.split.%d.mar.idx", input, r.Index))
				if err != nil {
					return fmt.Errorf("split: create shard %d index: %w", r.Index, err)
				}
				err = index.Write(idxOut, r.Data)
				closeErr := idxOut.Close()
				if err != nil {
					return fmt.Errorf("split: write shard %d index: %w", r.Index, err)
				}
				if closeErr != nil {
					return fmt.Errorf("split: close shard %d index: %w", r.Index, closeErr)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "source archive base path")
	cmd.Flags().IntVar(&count, "count", 1, "number of output shards")
	return cmd
}

func shardWeight(f index.FileIndexFile) uint64 {
	var total uint64
	for _, e := range f.Entries {
		total += e.BodySize
	}
	return total
}
