package commands

import (
	"fmt"
	"time"

	"archivescout/cmd/archivescout/utils"
	"archivescout/lib/capturelog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var flagHistoryLimit int

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 50, "max entries to list when no url is given")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [url]",
	Short: "Review the research log of past resolutions.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			fatal(err)
		}
		if store == nil {
			fatal(fmt.Errorf("history requires --log"))
		}

		var entries []capturelog.Entry
		if len(args) == 1 {
			entries, err = store.History(ctx, args[0])
		} else {
			entries, err = store.Recent(ctx, flagHistoryLimit)
		}
		if err != nil {
			fatal(err)
		}

		t := utils.NewTable()
		t.AppendHeader(table.Row{"checked", "url", "status", "snapshot / reason"})
		for _, e := range entries {
			detail := e.SnapshotUrl
			if detail == "" {
				detail = e.Reason
			}
			t.AppendRow(table.Row{
				e.CheckedAt.Format(time.RFC3339),
				e.TargetUrl,
				e.Status,
				detail,
			})
		}
		t.Render()
	},
}
