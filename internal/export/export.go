// Package export writes a crawl session's accumulated image records to
// disk as JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/eulerity/imagecrawler/internal/types"
)

// Exporter writes ImageRecord slices to files. NewExporter creates
// outputDir; each Export call writes to the outputFile path exactly as
// given, without joining it to outputDir.
type Exporter struct {
	outputDir string
}

// NewExporter ensures outputDir exists and returns an Exporter for it.
func NewExporter(outputDir string) (*Exporter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Exporter{outputDir: outputDir}, nil
}

// ExportJSON writes records as an indented JSON array to outputFile.
func (e *Exporter) ExportJSON(records []*types.ImageRecord, outputFile string) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}

	return nil
}

// ExportCSV writes records as CSV to outputFile.
func (e *Exporter) ExportCSV(records []*types.ImageRecord, outputFile string) error {
	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	headers := []string{"URL", "PageURL", "Alt", "Width", "Height", "IsLogo", "FirstSeenAt"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, record := range records {
		row := []string{
			record.URL,
			record.PageURL,
			record.Alt,
			fmt.Sprintf("%d", record.Width),
			fmt.Sprintf("%d", record.Height),
			fmt.Sprintf("%t", record.IsLogo),
			record.FirstSeenAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	return nil
}
