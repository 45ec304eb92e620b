package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <fingerprint>",
		Short: "Retrieve a stored artifact",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	cmd.Flags().String("out", "", "Write the image to this path (- for stdout)")

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	out, _ := cmd.Flags().GetString("out")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	rec, err := s.Get(cmd.Context(), args[0])
	if err != nil {
		exitPipelineErr("get", err)
	}

	if out != "" {
		if err := writeOutput(out, rec.Media); err != nil {
			exitErr("write image", err)
		}
		if out == "-" {
			return
		}
	}

	if textOutput() {
		fmt.Printf("%s %s/%s %s, created %s, %d accesses\n",
			rec.Fingerprint, rec.Diagram, rec.Format, humanize.Bytes(uint64(rec.Size)),
			humanize.Time(rec.CreatedAt), rec.AccessCount)
		return
	}
	printJSON(rec)
}
