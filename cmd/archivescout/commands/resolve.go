package commands

import (
	"fmt"
	"sync"

	"archivescout/cmd/archivescout/utils"
	"archivescout/lib/archivetime"
	"archivescout/lib/wayback"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	flagFrom string
	flagTo   string
)

func init() {
	resolveCmd.Flags().StringVar(&flagFrom, "from", "", "earliest acceptable capture date (YYYYMMDD)")
	resolveCmd.Flags().StringVar(&flagTo, "to", "", "latest acceptable capture date (YYYYMMDD)")
	rootCmd.AddCommand(resolveCmd)
}

func parseRange(from, to string) (*wayback.TimeRange, error) {
	if from == "" && to == "" {
		return nil, nil
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("both --from and --to are required")
	}
	start, err := archivetime.ParseDate(from)
	if err != nil {
		return nil, fmt.Errorf("--from: %w", err)
	}
	end, err := archivetime.ParseDate(to)
	if err != nil {
		return nil, fmt.Errorf("--to: %w", err)
	}
	return &wayback.TimeRange{Start: start, End: end}, nil
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <url> [url...]",
	Short: "Resolve urls to their closest archived snapshots.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		timeRange, err := parseRange(flagFrom, flagTo)
		if err != nil {
			fatal(err)
		}
		store, err := openStore(ctx)
		if err != nil {
			fatal(err)
		}
		client := newClient()

		// the client serializes requests through its rate limiter,
		// fanning out here just overlaps network waits
		results := make([]wayback.SnapshotResult, len(args))
		errs := make([]error, len(args))
		wg := sync.WaitGroup{}
		for i, target := range args {
			wg.Add(1)
			go func(i int, target string) {
				defer wg.Done()
				results[i], errs[i] = client.Resolve(ctx, wayback.SnapshotQuery{
					TargetUrl: target,
					Range:     timeRange,
				})
			}(i, target)
		}
		wg.Wait()

		t := utils.NewTable()
		t.AppendHeader(table.Row{"url", "status", "snapshot", "captured"})
		failed := false
		for i, target := range args {
			if errs[i] != nil {
				failed = true
				t.AppendRow(table.Row{target, "invalid", errs[i].Error(), ""})
				continue
			}

			res := results[i]
			if store != nil {
				err := store.RecordResult(ctx, target, res)
				if err != nil {
					fatal(err)
				}
			}

			switch res.Status {
			case wayback.StatusFound:
				t.AppendRow(table.Row{target, res.Status, res.Snapshot.Url, res.Snapshot.Timestamp})
			case wayback.StatusNotFound:
				t.AppendRow(table.Row{target, res.Status, "", ""})
			case wayback.StatusRequestFailed:
				failed = true
				t.AppendRow(table.Row{target, res.Status, res.Reason, ""})
			}
		}
		t.Render()

		if failed {
			fatal(fmt.Errorf("some lookups did not complete"))
		}
	},
}
