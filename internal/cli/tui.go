package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"rfp/internal/retrieval"
	"rfp/internal/tui"
)

func newTUICmd(rt *runtime) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Browse search results interactively",
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
			header := fmt.Sprintf("%s: %d chunks (%s)", st.CollectionName, st.TotalChunks, st.EmbeddingModel)
			ctx := cmd.Context()
			search := func(q string, n int) ([]retrieval.Passage, error) {
				return c.tool.Passages(ctx, q, n, nil)
			}
			_, err = tea.NewProgram(tui.New(search, limit, header), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of passages per search")
	return cmd
}
