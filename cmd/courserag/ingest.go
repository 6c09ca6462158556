package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func ingestCMD(load configLoader) *cobra.Command {
	var clearExisting bool
	var ingest = &cobra.Command{
		Use:   "ingest [path...]",
		Short: "Add course documents or folders to the store",
		Long: `Add course documents to the store. Folders skip courses that are already
stored; single files are always added. Without arguments the configured
documents folder is ingested.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, load)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				stats, err := a.IngestDocuments(ctx, clearExisting)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Added %d courses (%d chunks)\n", stats.Courses, stats.Chunks)
			}

			if clearExisting && len(args) > 0 {
				if err := a.Ingest.Clear(ctx); err != nil {
					return err
				}
			}
			for _, path := range args {
				info, err := os.Stat(path)
				if err != nil {
					return err
				}
				if info.IsDir() {
					stats, err := a.Ingest.AddCourseFolder(ctx, path, false)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s: added %d courses (%d chunks)\n", path, stats.Courses, stats.Chunks)
					continue
				}
				course, chunks, err := a.Ingest.AddCourseDocument(ctx, path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "%s: added %q (%d chunks)\n", path, course.Title, chunks)
			}

			if n, ok := a.ChunkCount(ctx); ok {
				fmt.Fprintf(out, "Store holds %d chunks\n", n)
			}
			return nil
		},
	}
	ingest.Flags().BoolVar(&clearExisting, "clear", false, "remove every stored course before ingesting")
	return ingest
}
