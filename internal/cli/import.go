package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/devplan/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import artifacts from JSON",
		Long:  "Import artifacts from JSON on stdin. Expects the format produced by export.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var exported []exportedArtifact
	if err := json.Unmarshal(data, &exported); err != nil {
		exitErr("parse json", err)
	}

	records := make([]model.ArtifactRecord, 0, len(exported))
	for _, e := range exported {
		records = append(records, model.ArtifactRecord{
			Fingerprint: e.Fingerprint,
			Format:      e.Format,
			Diagram:     e.Diagram,
			MimeType:    e.MimeType,
			Media:       e.Media,
		})
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	imported, err := s.Import(cmd.Context(), records)
	if err != nil {
		exitPipelineErr("import", err)
	}

	fmt.Printf(`{"ok":true,"imported":%d,"total":%d}`+"\n", imported, len(records))
}
