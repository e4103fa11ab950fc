package cli

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/submission-map/internal/domain"
	"github.com/spf13/cobra"
)

// Columns read from an import CSV. Header matching ignores case.
const (
	colAuthor      = "author_name"
	colAffiliation = "affiliation_name"
	colLatitude    = "latitude"
	colLongitude   = "longitude"
)

type importedLocation struct {
	Latitude  any `json:"latitude"`
	Longitude any `json:"longitude"`
}

type importedSubmission struct {
	AuthorName      string           `json:"author_name,omitempty"`
	AffiliationName string           `json:"affiliation_name,omitempty"`
	Location        importedLocation `json:"location"`
}

type importedHappening struct {
	Name        string               `json:"name,omitempty"`
	Submissions []importedSubmission `json:"submissions"`
}

type importedDocument struct {
	ConferenceShortName string              `json:"conference_short_name,omitempty"`
	Happenings          []importedHappening `json:"happenings"`
}

func newImportCommand(_ Dependencies) *cobra.Command {
	var (
		out        string
		conference string
		happening  string
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Convert a submissions CSV into a happenings dataset.",
		Long: "Read a CSV with author_name, affiliation_name, latitude and longitude\n" +
			"columns and write a happenings document the map can load. Rows whose\n" +
			"coordinates do not parse are kept verbatim so validate can report them.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return &domain.FetchError{Dataset: args[0], Err: err}
				}
				defer f.Close()
				in = f
			}

			submissions, err := readSubmissionsCSV(in)
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			doc := importedDocument{
				ConferenceShortName: conference,
				Happenings:          []importedHappening{{Name: happening, Submissions: submissions}},
			}

			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("encode dataset: %w", err)
			}
			data = append(data, '\n')

			parsed, err := domain.ParseDocument(args[0], data)
			if err != nil {
				return err
			}
			result, err := domain.Transform(parsed, domain.SchemaHappenings)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%d rows: %d markers, %d skipped\n",
				len(submissions), len(result.Features), result.Skipped)

			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the dataset here instead of stdout.")
	cmd.Flags().StringVar(&conference, "conference", "", "conference_short_name of the document.")
	cmd.Flags().StringVar(&happening, "happening", "", "Name of the happening holding the submissions.")
	return cmd
}

// readSubmissionsCSV maps CSV rows onto submissions. Only the coordinate
// columns are required.
func readSubmissionsCSV(r io.Reader) ([]importedSubmission, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 1 {
		return nil, errors.New("missing header row")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{colLatitude, colLongitude} {
		if _, ok := colIdx[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	submissions := make([]importedSubmission, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		submissions = append(submissions, importedSubmission{
			AuthorName:      get(row, colIdx, colAuthor),
			AffiliationName: get(row, colIdx, colAffiliation),
			Location: importedLocation{
				Latitude:  coordinateValue(get(row, colIdx, colLatitude)),
				Longitude: coordinateValue(get(row, colIdx, colLongitude)),
			},
		})
	}
	return submissions, nil
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// coordinateValue writes finite numbers as JSON numbers, empty cells as
// null and anything else as the original string.
func coordinateValue(cell string) any {
	if cell == "" {
		return nil
	}
	if !domain.IsDecimal(cell) {
		return cell
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v
	}
	return cell
}
