package commands

import (
	"archivescout/cmd/archivescout/utils"
	"archivescout/lib/wayback"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	flagSnapshotsFrom  string
	flagSnapshotsTo    string
	flagSnapshotsLimit int
	flagOnlyOK         bool
)

func init() {
	snapshotsCmd.Flags().StringVar(&flagSnapshotsFrom, "from", "", "earliest capture date (YYYYMMDD)")
	snapshotsCmd.Flags().StringVar(&flagSnapshotsTo, "to", "", "latest capture date (YYYYMMDD)")
	snapshotsCmd.Flags().IntVar(&flagSnapshotsLimit, "limit", 25, "max captures to list, 0 for the archive's default")
	snapshotsCmd.Flags().BoolVar(&flagOnlyOK, "only-ok", false, "only captures that replayed with http 200")
	rootCmd.AddCommand(snapshotsCmd)
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots <url>",
	Short: "List a url's capture history, oldest first.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		timeRange, err := parseRange(flagSnapshotsFrom, flagSnapshotsTo)
		if err != nil {
			fatal(err)
		}
		client := newClient()

		captures, err := client.Snapshots(ctx, wayback.CaptureQuery{
			TargetUrl: args[0],
			Range:     timeRange,
			Limit:     flagSnapshotsLimit,
			OnlyOK:    flagOnlyOK,
		})
		if err != nil {
			fatal(err)
		}

		t := utils.NewTable()
		t.AppendHeader(table.Row{"captured", "status", "mime", "bytes", "snapshot"})
		for _, c := range captures {
			t.AppendRow(table.Row{
				c.Timestamp,
				c.StatusCode,
				c.MimeType,
				c.Length,
				client.ReplayUrl(c),
			})
		}
		t.Render()
	},
}
