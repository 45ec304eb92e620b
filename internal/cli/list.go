package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rcliao/devplan/internal/model"
	"github.com/rcliao/devplan/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored artifacts",
		Run:   runList,
	}

	cmd.Flags().String("image", "", "Filter by image format (png, svg, txt)")
	cmd.Flags().String("diagram", "", "Filter by diagram type (gantt, graph)")
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Bool("fingerprints-only", false, "Only output fingerprints")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	image, _ := cmd.Flags().GetString("image")
	diagram, _ := cmd.Flags().GetString("diagram")
	limit, _ := cmd.Flags().GetInt("limit")
	fpOnly, _ := cmd.Flags().GetBool("fingerprints-only")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	records, err := s.List(cmd.Context(), store.ListParams{
		Format:  model.Format(image),
		Diagram: model.Diagram(diagram),
		Limit:   limit,
	})
	if err != nil {
		exitErr("list", err)
	}

	if fpOnly {
		for _, r := range records {
			fmt.Println(r.Fingerprint)
		}
		return
	}

	if textOutput() {
		rows := make([][]string, 0, len(records))
		for _, r := range records {
			rows = append(rows, []string{
				r.Fingerprint[:min(12, len(r.Fingerprint))],
				string(r.Diagram),
				string(r.Format),
				humanize.Bytes(uint64(r.Size)),
				humanize.Time(r.CreatedAt),
				fmt.Sprint(r.AccessCount),
			})
		}
		printTable([]string{"Fingerprint", "Diagram", "Format", "Size", "Created", "Accesses"}, rows)
		return
	}

	if records == nil {
		records = []model.ArtifactRecord{}
	}
	printJSON(records)
}
