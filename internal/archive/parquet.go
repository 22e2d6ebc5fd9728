package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/querylens/querylens/internal/schema"
)

// parquetColumn is one row per column. Table-level fields repeat on every
// row of the table; a table without columns gets a single row at position -1.
type parquetColumn struct {
	TableName         string `parquet:"table_name"`
	Position          int32  `parquet:"position"`
	ColumnName        string `parquet:"column_name"`
	ColumnType        string `parquet:"column_type"`
	Nullable          bool   `parquet:"nullable"`
	PrimaryKey        bool   `parquet:"primary_key"`
	Summary           string `parquet:"summary"`
	SampleRowsJSON    string `parquet:"sample_rows_json"`
	ExtractedAtUnixMs int64  `parquet:"extracted_at_unix_ms"`
}

type EncodeResult struct {
	Data       []byte
	RowCount   int64
	TableCount int
}

func EncodeDescriptions(descriptions []schema.Description, extractedAt time.Time) (EncodeResult, error) {
	if len(descriptions) == 0 {
		return EncodeResult{}, fmt.Errorf("descriptions are required")
	}

	rows := make([]parquetColumn, 0, len(descriptions)*4)
	for _, description := range descriptions {
		samples, err := json.Marshal(description.SampleRows)
		if err != nil {
			return EncodeResult{}, fmt.Errorf("encode sample rows for %q: %w", description.TableName, err)
		}
		base := parquetColumn{
			TableName:         description.TableName,
			Position:          -1,
			Summary:           description.Summary,
			SampleRowsJSON:    string(samples),
			ExtractedAtUnixMs: extractedAt.UTC().UnixMilli(),
		}
		if len(description.Columns) == 0 {
			rows = append(rows, base)
			continue
		}
		for i, column := range description.Columns {
			row := base
			row.Position = int32(i)
			row.ColumnName = column.Name
			row.ColumnType = column.Type
			row.Nullable = column.Nullable
			row.PrimaryKey = column.PrimaryKey
			rows = append(rows, row)
		}
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetColumn](buf)
	if _, err := writer.Write(rows); err != nil {
		return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}
	return EncodeResult{Data: buf.Bytes(), RowCount: int64(len(rows)), TableCount: len(descriptions)}, nil
}

// DecodeDescriptions rebuilds descriptions in the order their tables first
// appear, together with the extraction time recorded in the file.
func DecodeDescriptions(data []byte) ([]schema.Description, time.Time, error) {
	reader := parquet.NewGenericReader[parquetColumn](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()

	rows := make([]parquetColumn, reader.NumRows())
	read := 0
	for read < len(rows) {
		n, err := reader.Read(rows[read:])
		read += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, time.Time{}, fmt.Errorf("read parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	rows = rows[:read]

	var (
		descriptions []schema.Description
		extractedAt  time.Time
	)
	index := map[string]int{}
	for _, row := range rows {
		position, ok := index[row.TableName]
		if !ok {
			var samples [][]string
			if row.SampleRowsJSON != "" {
				if err := json.Unmarshal([]byte(row.SampleRowsJSON), &samples); err != nil {
					return nil, time.Time{}, fmt.Errorf("decode sample rows for %q: %w", row.TableName, err)
				}
			}
			descriptions = append(descriptions, schema.Description{
				TableName:  row.TableName,
				Columns:    []schema.Column{},
				SampleRows: samples,
				Summary:    row.Summary,
			})
			position = len(descriptions) - 1
			index[row.TableName] = position
			if row.ExtractedAtUnixMs > 0 {
				extractedAt = time.UnixMilli(row.ExtractedAtUnixMs).UTC()
			}
		}
		if row.Position < 0 {
			continue
		}
		descriptions[position].Columns = append(descriptions[position].Columns, schema.Column{
			Name:       row.ColumnName,
			Type:       row.ColumnType,
			Nullable:   row.Nullable,
			PrimaryKey: row.PrimaryKey,
		})
	}
	return descriptions, extractedAt, nil
}
