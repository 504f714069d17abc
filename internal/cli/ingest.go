package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rfp/internal/domain"
	"rfp/internal/service"
)

type ingestFlags struct {
	reset    bool
	forceOCR bool
	meta     map[string]string
}

func (f *ingestFlags) metadata() domain.Metadata {
	if len(f.meta) == 0 {
		return nil
	}
	md := make(domain.Metadata, len(f.meta))
	for k, v := range f.meta {
		md[k] = v
	}
	return md
}

func newIngestCmd(rt *runtime) *cobra.Command {
	flags := &ingestFlags{}
	var (
		patterns  []string
		recursive bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest documents into the vector index",
		Long: `Ingest files, directories or JSON opportunity records.

Without a subcommand the configured raw directory (ingest.raw_dir) is ingested.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngestDir(cmd, rt, flags, rt.cfg.Ingest.RawDir, patterns, recursive)
		},
	}
	pf := cmd.PersistentFlags()
	pf.BoolVar(&flags.reset, "reset", false, "clear the collection before ingesting")
	pf.BoolVar(&flags.forceOCR, "force-ocr", false, "OCR every PDF regardless of its text layer")
	pf.StringToStringVar(&flags.meta, "meta", nil, "extra metadata attached to every chunk (key=value)")
	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "file name glob (repeatable, default from config)")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subdirectories")

	cmd.AddCommand(newIngestFileCmd(rt, flags), newIngestDirCmd(rt, flags), newIngestRecordsCmd(rt, flags))
	return cmd
}

func newIngestFileCmd(rt *runtime, flags *ingestFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "file <path>...",
		Short: "Ingest one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rt.openForIngest(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer c.Close()

			var opts []service.FileOption
			if flags.forceOCR {
				opts = append(opts, service.WithForceOCR())
			}
			var res service.BatchResult
			for _, path := range args {
				res.Items++
				n, err := c.ingest.IngestFile(cmd.Context(), path, flags.metadata(), opts...)
				if err != nil {
					res.Failures = append(res.Failures, service.ItemFailure{Item: path, Err: err})
					continue
				}
				if n == 0 {
					res.Skipped++
				}
				res.Chunks += n
			}
			return report(cmd.Context(), cmd.OutOrStdout(), c, "files", res)
		},
	}
}

func newIngestDirCmd(rt *runtime, flags *ingestFlags) *cobra.Command {
	var (
		patterns  []string
		recursive bool
	)
	cmd := &cobra.Command{
		Use:   "dir [directory]",
		Short: "Ingest every matching file in a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rt.cfg.Ingest.RawDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runIngestDir(cmd, rt, flags, dir, patterns, recursive)
		},
	}
	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "file name glob (repeatable, default from config)")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subdirectories")
	return cmd
}

func runIngestDir(cmd *cobra.Command, rt *runtime, flags *ingestFlags, dir string, patterns []string, recursive bool) error {
	c, err := rt.openForIngest(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer c.Close()

	if len(patterns) == 0 {
		patterns = rt.cfg.Ingest.Patterns
	}
	res, err := c.ingest.IngestDirectory(cmd.Context(), dir, service.DirectoryOptions{
		Patterns:  patterns,
		Recursive: recursive,
		Metadata:  flags.metadata(),
		ForceOCR:  flags.forceOCR,
	})
	if err != nil {
		return fmt.Errorf("ingest %s: %w", dir, err)
	}
	return report(cmd.Context(), cmd.OutOrStdout(), c, "files", res)
}

func newIngestRecordsCmd(rt *runtime, flags *ingestFlags) *cobra.Command {
	var (
		source        string
		fullText      bool
		noDescription bool
	)
	cmd := &cobra.Command{
		Use:   "records <file.json>",
		Short: "Ingest opportunity records from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rt.openForIngest(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer c.Close()

			opts := service.RecordOptions{
				SourcePrefix:       rt.cfg.Ingest.RecordSource,
				IncludeDescription: rt.cfg.Ingest.IncludeDescription && !noDescription,
				IncludeFullText:    rt.cfg.Ingest.IncludeFullText || fullText,
			}
			if source != "" {
				opts.SourcePrefix = source
			}
			res, err := c.ingest.IngestRecordsFile(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return report(cmd.Context(), cmd.OutOrStdout(), c, "records", res)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source prefix for chunk ids (default from config)")
	cmd.Flags().BoolVar(&fullText, "full-text", false, "include the record's full text")
	cmd.Flags().BoolVar(&noDescription, "no-description", false, "omit the record description")
	return cmd
}

func (rt *runtime) openForIngest(ctx context.Context, flags *ingestFlags) (*components, error) {
	c, err := rt.open(ctx)
	if err != nil {
		return nil, err
	}
	if flags.reset {
		rt.logger.Warn("resetting collection")
		if err := c.index.Reset(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// report prints the batch outcome and collection stats. It fails when any item failed.
func report(ctx context.Context, w io.Writer, c *components, unit string, res service.BatchResult) error {
	fmt.Fprintf(w, "Ingested %d chunks from %d %s (%d skipped, %d failed)\n", res.Chunks, res.Items, unit, res.Skipped, res.Failed())
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  failed: %s\n", f.Error())
	}
	st, err := c.index.Stats(ctx)
	if err != nil {
		return err
	}
	printStats(w, st)
	if res.Failed() > 0 {
		return fmt.Errorf("%d of %d %s failed", res.Failed(), res.Items, unit)
	}
	return nil
}
