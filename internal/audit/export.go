package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
)

var (
	_ Exporter = ExportJSON
	_ Exporter = ExportParquet
)

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all entries to a JSON writer.
func ExportJSON(ctx context.Context, store Store, writer io.Writer) (int, error) {
	all, err := store.List(ctx, maxExportLimit, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list audit entries: %w", err)
	}
	if all == nil {
		all = []*Entry{}
	}

	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Entries:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return 0, err
	}
	return len(all), nil
}

// ImportJSON imports entries from a JSON reader. Entries already stored for
// the same request and timestamp are skipped.
func ImportJSON(ctx context.Context, store Store, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, e := range export.Entries {
		if e == nil {
			continue
		}
		exists, err := store.Exists(ctx, e.RequestID, e.CreatedAt)
		if err != nil {
			return imported, skipped, err
		}
		if exists {
			skipped++
			continue
		}

		if err := store.Record(ctx, *e); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// ParquetRow is the Parquet layout of an audit entry.
type ParquetRow struct {
	RequestID      string   `parquet:"request_id"`
	Insurer        string   `parquet:"insurer"`
	Category       string   `parquet:"category"`
	Violations     []string `parquet:"violations,list"`
	ViolationCount int32    `parquet:"violation_count"`
	AIDecision     string   `parquet:"ai_decision"`
	FinalDecision  string   `parquet:"final_decision"`
	Confidence     int32    `parquet:"confidence"`
	SafetyOverride bool     `parquet:"safety_override"`
	Generator      string   `parquet:"generator"`
	CreatedAt      int64    `parquet:"created_at,timestamp"`
}

func parquetRow(e *Entry) ParquetRow {
	return ParquetRow{
		RequestID:      e.RequestID,
		Insurer:        e.Insurer,
		Category:       e.Category,
		Violations:     e.Violations,
		ViolationCount: int32(len(e.Violations)),
		AIDecision:     string(e.AIDecision),
		FinalDecision:  string(e.FinalDecision),
		Confidence:     int32(e.Confidence),
		SafetyOverride: e.SafetyOverride,
		Generator:      e.Generator,
		CreatedAt:      e.CreatedAt.UnixMilli(),
	}
}

// ExportParquet writes all entries as a Snappy-compressed Parquet file.
func ExportParquet(ctx context.Context, store Store, writer io.Writer) (int, error) {
	all, err := store.List(ctx, maxExportLimit, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list audit entries: %w", err)
	}

	rows := make([]ParquetRow, 0, len(all))
	for _, e := range all {
		rows = append(rows, parquetRow(e))
	}

	pw := parquet.NewGenericWriter[ParquetRow](writer,
		parquet.Compression(&parquet.Snappy),
	)
	if _, err := pw.Write(rows); err != nil {
		pw.Close()
		return 0, fmt.Errorf("write audit rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return 0, fmt.Errorf("close parquet writer: %w", err)
	}
	return len(rows), nil
}
