package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/devplan/internal/model"
	"github.com/rcliao/devplan/internal/parser"
	"github.com/rcliao/devplan/internal/sheet"
)

func init() {
	cmd := &cobra.Command{
		Use:   "parse [file|-]",
		Short: "Parse a plan and print its document tree",
		Args:  cobra.MaximumNArgs(1),
		Run:   runParse,
	}

	cmd.Flags().String("as", "json", "Document encoding: json, yaml or xlsx")
	cmd.Flags().String("out", "-", "Write the document to this path (- for stdout)")

	RootCmd.AddCommand(cmd)
}

func runParse(cmd *cobra.Command, args []string) {
	as, _ := cmd.Flags().GetString("as")
	out, _ := cmd.Flags().GetString("out")

	src, err := readSource(args)
	if err != nil {
		exitErr("read plan", err)
	}
	doc, err := parser.ParseText(src)
	if err != nil {
		exitPipelineErr("parse", err)
	}

	if textOutput() {
		counts := documentSummary(doc)
		var rows [][]string
		for _, k := range []model.NodeKind{model.KindMilestone, model.KindTask, model.KindDependency, model.KindNote} {
			rows = append(rows, []string{string(k), fmt.Sprint(counts[k])})
		}
		printTable([]string{"Kind", "Count"}, rows)
		return
	}

	data, err := encodeDocument(doc, as)
	if err != nil {
		exitErr("parse", err)
	}
	if err := writeOutput(out, data); err != nil {
		exitErr("write document", err)
	}
}

// encodeDocument serialises doc in the named encoding.
func encodeDocument(doc *model.PlanDocument, as string) ([]byte, error) {
	switch as {
	case "json":
		b, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return append(b, '\n'), nil
	case "yaml":
		b, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return b, nil
	case "xlsx":
		var buf bytes.Buffer
		if err := sheet.Write(&buf, doc); err != nil {
			return nil, fmt.Errorf("encode xlsx: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown encoding %q (want json, yaml or xlsx)", as)
}

// documentSummary counts nodes by kind.
func documentSummary(doc *model.PlanDocument) map[model.NodeKind]int {
	counts := make(map[model.NodeKind]int, len(model.ValidKinds))
	for k := range model.ValidKinds {
		counts[k] = doc.Count(k)
	}
	return counts
}
