package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "render [file|-]",
		Short: "Render a plan",
		Long: `Render a plan read from a file or stdin. The artifact is stored under its
fingerprint; rendering the same plan with the same options again is served
from the store without running the engine.`,
		Args: cobra.MaximumNArgs(1),
		Run:  runRender,
	}

	cmd.Flags().StringArrayP("option", "o", nil, "Render option key=value (format, diagram, title, scale, theme)")
	cmd.Flags().String("out", "", "Write the image to this path (- for stdout)")

	RootCmd.AddCommand(cmd)
}

func runRender(cmd *cobra.Command, args []string) {
	pairs, _ := cmd.Flags().GetStringArray("option")
	out, _ := cmd.Flags().GetString("out")

	opts, err := parseOptions(pairs)
	if err != nil {
		exitErr("options", err)
	}
	src, err := readSource(args)
	if err != nil {
		exitErr("read plan", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()
	log := newLogger()
	defer log.Close()

	res, err := newService(s, log).RenderPlan(cmd.Context(), src, opts)
	if err != nil {
		exitPipelineErr("render", err)
	}

	if out != "" {
		if err := writeOutput(out, res.MediaBytes); err != nil {
			exitErr("write image", err)
		}
		if out == "-" {
			return
		}
	}

	if textOutput() {
		state := "rendered"
		if res.Cached {
			state = "cached"
		}
		fmt.Printf("%s %s (%s, %s)\n", state, res.Fingerprint, res.MimeType, humanize.Bytes(uint64(res.Size)))
		return
	}
	printJSON(res)
}
