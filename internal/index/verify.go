package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/querylens/querylens/internal/observability"
	"github.com/querylens/querylens/internal/schema"
	"github.com/querylens/querylens/internal/vectorstore"
)

const (
	MismatchNotIndexed = "not_indexed"
	MismatchStale      = "stale_record"
	MismatchColumns    = "columns"
	MismatchUnverified = "unverified"
	MismatchEmbedder   = "embedder"
)

// SchemaSource yields the live schema.
type SchemaSource interface {
	Extract(ctx context.Context) ([]schema.Description, error)
}

type Mismatch struct {
	TableName string            `json:"table_name"`
	Kind      string            `json:"kind"`
	Columns   schema.ColumnDiff `json:"columns,omitempty"`
	Detail    string            `json:"detail,omitempty"`
}

type VerifyReport struct {
	LiveTables    int        `json:"live_tables"`
	IndexedTables int        `json:"indexed_tables"`
	Mismatches    []Mismatch `json:"mismatches"`
	CheckedAt     time.Time  `json:"checked_at"`
}

func (r VerifyReport) Consistent() bool {
	return len(r.Mismatches) == 0
}

// Verifier recomputes descriptions from the live database and compares
// their column sets against the indexed payloads.
type Verifier struct {
	source     SchemaSource
	store      vectorstore.Store
	embedderID string
}

func NewVerifier(source SchemaSource, store vectorstore.Store, embedderID string) *Verifier {
	return &Verifier{source: source, store: store, embedderID: embedderID}
}

func (v *Verifier) Verify(ctx context.Context) (VerifyReport, error) {
	live, err := v.source.Extract(ctx)
	if err != nil {
		return VerifyReport{}, err
	}
	records, err := v.store.List(ctx)
	if err != nil {
		return VerifyReport{}, fmt.Errorf("list indexed tables: %w", err)
	}
	report := Compare(live, records, v.embedderID)
	for kind, count := range countByKind(report.Mismatches) {
		observability.AddIndexMismatches(kind, count)
	}
	return report, nil
}

// Compare diffs live descriptions against indexed records. An empty
// embedderID skips the embedder check.
func Compare(live []schema.Description, records []vectorstore.Record, embedderID string) VerifyReport {
	report := VerifyReport{
		LiveTables:    len(live),
		IndexedTables: len(records),
		Mismatches:    []Mismatch{},
		CheckedAt:     time.Now().UTC(),
	}

	indexed := make(map[string]vectorstore.Record, len(records))
	for _, record := range records {
		indexed[record.TableName] = record
	}
	liveNames := make(map[string]struct{}, len(live))

	for _, description := range live {
		liveNames[description.TableName] = struct{}{}
		record, ok := indexed[description.TableName]
		if !ok {
			report.Mismatches = append(report.Mismatches, Mismatch{TableName: description.TableName, Kind: MismatchNotIndexed})
			continue
		}
		if diff := schema.CompareColumns(record.Description, description); !diff.Empty() {
			report.Mismatches = append(report.Mismatches, Mismatch{TableName: description.TableName, Kind: MismatchColumns, Columns: diff})
		}
		if !record.Verified {
			report.Mismatches = append(report.Mismatches, Mismatch{TableName: description.TableName, Kind: MismatchUnverified})
		}
		if embedderID != "" && record.EmbedderID != embedderID {
			report.Mismatches = append(report.Mismatches, Mismatch{
				TableName: description.TableName,
				Kind:      MismatchEmbedder,
				Detail:    fmt.Sprintf("indexed with %q, querying with %q", record.EmbedderID, embedderID),
			})
		}
	}
	for _, record := range records {
		if _, ok := liveNames[record.TableName]; !ok {
			report.Mismatches = append(report.Mismatches, Mismatch{TableName: record.TableName, Kind: MismatchStale})
		}
	}

	sort.SliceStable(report.Mismatches, func(i, j int) bool {
		return report.Mismatches[i].TableName < report.Mismatches[j].TableName
	})
	return report
}

func countByKind(mismatches []Mismatch) map[string]int {
	counts := map[string]int{}
	for _, mismatch := range mismatches {
		counts[mismatch.Kind]++
	}
	return counts
}
