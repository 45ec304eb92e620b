package cli

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/rcliao/devplan/internal/library"
	"github.com/rcliao/devplan/internal/parser"
	"github.com/rcliao/devplan/internal/pipeline"
)

// planResult reports one plan in status and render-all output.
type planResult struct {
	Name        string         `json:"name"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	State       string         `json:"state,omitempty"`
	Cached      bool           `json:"cached,omitempty"`
	Class       pipeline.Class `json:"class,omitempty"`
	Error       string         `json:"error,omitempty"`
}

func init() {
	plansCmd := &cobra.Command{
		Use:   "plans",
		Short: "Plan library management",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List plans in the library",
		Run:   runPlansList,
	}

	addCmd := &cobra.Command{
		Use:   "add <name> [file|-]",
		Short: "Add or replace a plan",
		Args:  cobra.RangeArgs(1, 2),
		Run:   runPlansAdd,
	}
	addCmd.Flags().Bool("force", false, "Store the plan even if it does not parse")

	rmCmd := &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove a plan",
		Args:  cobra.ExactArgs(1),
		Run:   runPlansRm,
	}

	statusCmd := &cobra.Command{
		Use:   "status [name...]",
		Short: "Report whether plans have been rendered",
		Run:   runPlansStatus,
	}
	statusCmd.Flags().StringArrayP("option", "o", nil, "Render option key=value")

	renderAllCmd := &cobra.Command{
		Use:   "render-all",
		Short: "Render every plan in the library",
		Run:   runPlansRenderAll,
	}
	renderAllCmd.Flags().StringArrayP("option", "o", nil, "Render option key=value")
	renderAllCmd.Flags().Int("workers", 0, "Concurrent renders (default: renderer.max_concurrent)")

	plansCmd.AddCommand(listCmd, addCmd, rmCmd, statusCmd, renderAllCmd)
	RootCmd.AddCommand(plansCmd)
}

func runPlansList(cmd *cobra.Command, args []string) {
	plans, err := openLibrary().List()
	if err != nil {
		exitErr("list plans", err)
	}

	if textOutput() {
		rows := make([][]string, 0, len(plans))
		for _, p := range plans {
			rows = append(rows, []string{p.Name, humanize.Bytes(uint64(p.Size)), humanize.Time(p.ModTime)})
		}
		printTable([]string{"Name", "Size", "Modified"}, rows)
		return
	}
	if plans == nil {
		plans = []library.Plan{}
	}
	printJSON(plans)
}

func runPlansAdd(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")

	src, err := readSource(args[1:])
	if err != nil {
		exitErr("read plan", err)
	}
	if !force {
		if _, err := parser.ParseText(src); err != nil {
			exitPipelineErr("add", err)
		}
	}

	plan, err := openLibrary().Write(args[0], src)
	if err != nil {
		exitErr("add", err)
	}
	printJSON(plan)
}

func runPlansRm(cmd *cobra.Command, args []string) {
	name, err := library.ValidateName(args[0])
	if err != nil {
		exitErr("rm", err)
	}
	if err := openLibrary().Remove(name); err != nil {
		exitErr("rm", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"name":%q}`+"\n", name)
}

// planNames returns args, or every plan in the library when args is empty.
func planNames(lib *library.Library, args []string) []string {
	if len(args) > 0 {
		return args
	}
	plans, err := lib.List()
	if err != nil {
		exitErr("list plans", err)
	}
	names := make([]string, 0, len(plans))
	for _, p := range plans {
		names = append(names, p.Name)
	}
	return names
}

func runPlansStatus(cmd *cobra.Command, args []string) {
	pairs, _ := cmd.Flags().GetStringArray("option")
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

	svc := newService(s, log)
	lib := openLibrary()
	var results []planResult
	for _, name := range planNames(lib, args) {
		r := planResult{Name: name}
		src, err := lib.Read(name)
		if err != nil {
			r.Error = err.Error()
			results = append(results, r)
			continue
		}
		st, err := svc.Status(cmd.Context(), src, opts)
		if err != nil {
			r.Class = pipeline.Classify(err)
			r.Error = err.Error()
		} else {
			r.Fingerprint = st.Fingerprint
			r.State = st.State
		}
		results = append(results, r)
	}
	printPlanResults(results)
}

func runPlansRenderAll(cmd *cobra.Command, args []string) {
	pairs, _ := cmd.Flags().GetStringArray("option")
	workers, _ := cmd.Flags().GetInt("workers")
	opts, err := parseOptions(pairs)
	if err != nil {
		exitErr("options", err)
	}
	if workers <= 0 {
		workers = loadConfig().Renderer.MaxConcurrent
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()
	log := newLogger()
	defer log.Close()

	svc := newService(s, log)
	lib := openLibrary()
	ctx := cmd.Context()

	p := pool.NewWithResults[planResult]().WithMaxGoroutines(workers)
	for _, name := range planNames(lib, args) {
		p.Go(func() planResult {
			r := planResult{Name: name}
			src, err := lib.Read(name)
			if err != nil {
				r.Error = err.Error()
				return r
			}
			res, err := svc.RenderPlan(ctx, src, opts)
			if err != nil {
				r.Class = pipeline.Classify(err)
				r.Error = err.Error()
				return r
			}
			r.Fingerprint = res.Fingerprint
			r.State = pipeline.StateRendered
			r.Cached = res.Cached
			return r
		})
	}
	results := p.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	printPlanResults(results)
}

func printPlanResults(results []planResult) {
	if !textOutput() {
		if results == nil {
			results = []planResult{}
		}
		printJSON(results)
		return
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		state := r.State
		if r.Error != "" {
			state = errorStyle.Render(r.Error)
		} else if r.Cached {
			state += subtleStyle.Render(" (cached)")
		}
		fp := r.Fingerprint
		if len(fp) > 12 {
			fp = fp[:12]
		}
		rows = append(rows, []string{r.Name, fp, state})
	}
	printTable([]string{"Plan", "Fingerprint", "State"}, rows)
}
