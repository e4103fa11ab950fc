package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/submission-map/internal/domain"
	"github.com/spf13/cobra"
)

// readDocument loads a dataset file, or stdin when path is "-".
func readDocument(cmd *cobra.Command, path string) (domain.DatasetDocument, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.DatasetDocument{}, &domain.FetchError{Dataset: path, Err: err}
	}
	return domain.ParseDocument(path, data)
}

func addSchemaFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "schema", domain.SchemaHappenings.String(), "Document shape: flat or happenings.")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
