package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/devplan/internal/model"
)

// exportedArtifact is an artifact with its media, base64 encoded by
// encoding/json.
type exportedArtifact struct {
	Fingerprint string        `json:"fingerprint"`
	Format      model.Format  `json:"format"`
	Diagram     model.Diagram `json:"diagram"`
	MimeType    string        `json:"mime_type"`
	CreatedAt   time.Time     `json:"created_at"`
	Media       []byte        `json:"media"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export artifacts as JSON",
		Long:  "Export every stored artifact, media included, as a JSON array that import accepts.",
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	records, err := s.ExportAll(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}

	out := make([]exportedArtifact, 0, len(records))
	for _, r := range records {
		out = append(out, exportedArtifact{
			Fingerprint: r.Fingerprint,
			Format:      r.Format,
			Diagram:     r.Diagram,
			MimeType:    r.MimeType,
			CreatedAt:   r.CreatedAt,
			Media:       r.Media,
		})
	}
	printJSON(out)
}
