package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rfp/internal/index"
)

func newStatsCmd(rt *runtime) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show vector index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			st, err := c.index.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(st, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			printStats(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newResetCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every chunk in the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.index.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Collection %s reset\n", rt.cfg.VectorStore.Collection)
			return nil
		},
	}
}

func printStats(w io.Writer, st index.Stats) {
	fmt.Fprintln(w, "Vector store statistics:")
	fmt.Fprintf(w, "  Collection:      %s\n", st.CollectionName)
	fmt.Fprintf(w, "  Total chunks:    %d\n", st.TotalChunks)
	fmt.Fprintf(w, "  Storage:         %s\n", st.PersistDirectory)
	fmt.Fprintf(w, "  Embedding model: %s\n", st.EmbeddingModel)
}
