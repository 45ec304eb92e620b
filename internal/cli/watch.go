package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/devplan/internal/watch"
)

func init() {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-render library plans as they change",
		Long:  "Watch the plan library directory and render each plan after it is written. Prints one JSON line per render.",
		Run:   runWatch,
	}

	cmd.Flags().StringArrayP("option", "o", nil, "Render option key=value")
	cmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before rendering a changed plan")

	RootCmd.AddCommand(cmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	pairs, _ := cmd.Flags().GetStringArray("option")
	debounce, _ := cmd.Flags().GetDuration("debounce")
	opts, err := parseOptions(pairs)
	if err != nil {
		exitErr("options", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()
	log := newLogger()
	defer log.Close()

	w := watch.New(openLibrary(), newService(s, log),
		watch.WithOptions(opts),
		watch.WithDebounce(debounce),
		watch.WithLogger(log),
		watch.WithResultCallback(func(r watch.Result) {
			if textOutput() {
				switch {
				case r.Error != "":
					fmt.Println(errorStyle.Render(fmt.Sprintf("%s: %s", r.Name, r.Error)))
				case r.Cached:
					fmt.Printf("%s: %s %s\n", r.Name, r.Fingerprint, subtleStyle.Render("(cached)"))
				default:
					fmt.Printf("%s: %s\n", r.Name, r.Fingerprint)
				}
				return
			}
			b, _ := json.Marshal(r)
			fmt.Println(string(b))
		}),
	)
	if err := w.Run(cmd.Context(), nil); err != nil {
		exitErr("watch", err)
	}
}
