package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xiaoyuanzhu-com/hound/vendors"
	"github.com/xiaoyuanzhu-com/hound/workers/meili"
)

// newSearchIndex returns the configured search index. Tests replace it.
var newSearchIndex = func() (meili.Index, error) {
	client := vendors.GetMeiliClient()
	if client == nil {
		return nil, fmt.Errorf("search is not configured (set MEILI_HOST)")
	}
	return client, nil
}

var reindexAll bool

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Push stored proposals to the search index",
	Long: `Push every proposal that is not yet searchable to Meilisearch. With --all,
proposals already indexed are pushed again, which rebuilds an index that was
wiped or recreated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := newSearchIndex()
		if err != nil {
			return err
		}

		store, err := openDB()
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		if reindexAll {
			if _, err := store.ResetProposalIndex(); err != nil {
				return fmt.Errorf("resetting index state: %w", err)
			}
		}

		indexed, failed := meili.NewSyncWorker(meili.Config{}, store, index).SyncPending()
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d proposals, %d failed\n", indexed, failed)
		if failed > 0 {
			return fmt.Errorf("%d proposals could not be indexed", failed)
		}
		return nil
	},
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexAll, "all", false, "re-push proposals that are already indexed")
	rootCmd.AddCommand(reindexCmd)
}
