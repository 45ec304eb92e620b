package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show artifact store statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	if textOutput() {
		fmt.Printf("%s (%s)\n", stats.DBPath, humanize.Bytes(uint64(stats.DBSizeBytes)))
		fmt.Printf("%s artifacts, %s of media, %s accesses\n",
			humanize.Comma(int64(stats.TotalArtifacts)),
			humanize.Bytes(uint64(stats.TotalBytes)),
			humanize.Comma(stats.TotalAccesses))
		rows := make([][]string, 0, len(stats.Formats))
		for _, f := range stats.Formats {
			rows = append(rows, []string{f.Diagram, f.Format, fmt.Sprint(f.Count), humanize.Bytes(uint64(f.Bytes))})
		}
		printTable([]string{"Diagram", "Format", "Count", "Size"}, rows)
		return
	}

	printJSON(stats)
}
