package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rfp/internal/domain"
	"rfp/internal/retrieval"
)

func newSearchCmd(rt *runtime) *cobra.Command {
	var (
		limit  int
		where  map[string]string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search past RFP responses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			var filter domain.Filter
			if len(where) > 0 {
				filter = make(domain.Filter, len(where))
				for k, v := range where {
					filter[k] = v
				}
			}
			passages, err := c.tool.Passages(cmd.Context(), strings.Join(args, " "), limit, filter)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if asJSON {
				if passages == nil {
					passages = []retrieval.Passage{}
				}
				data, err := json.MarshalIndent(passages, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal results: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), retrieval.Format(passages))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", retrieval.DefaultResults, "number of passages to return")
	cmd.Flags().StringToStringVar(&where, "where", nil, "metadata equality filter (key=value)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}
