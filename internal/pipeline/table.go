package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
)

// TableWriter streams rows as CSV. Every row is flushed to the underlying
// writer as soon as it is appended.
type TableWriter struct {
	csv       *csv.Writer
	record    []string
	begun     bool
	finalized bool
	rows      int
}

func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{
		csv:    csv.NewWriter(w),
		record: make([]string, entity.RowWidth),
	}
}

func (t *TableWriter) Begin(columns []string) error {
	if t.finalized {
		return ErrFinalized
	}
	if t.begun {
		return ErrHeaderWritten
	}
	if len(columns) != entity.RowWidth {
		return fmt.Errorf("header has %d columns, want %d", len(columns), entity.RowWidth)
	}
	t.begun = true
	return t.write(columns)
}

func (t *TableWriter) Append(row entity.Row) error {
	if t.finalized {
		return ErrFinalized
	}
	if !t.begun {
		return ErrNotBegun
	}
	if err := t.write(formatRow(row, t.record)); err != nil {
		return err
	}
	t.rows++
	return nil
}

// Finalize flushes any buffered output. The writer rejects further calls.
func (t *TableWriter) Finalize() error {
	if t.finalized {
		return ErrFinalized
	}
	if !t.begun {
		return ErrNotBegun
	}
	t.finalized = true
	t.csv.Flush()
	return t.csv.Error()
}

// Rows returns the number of data rows written so far.
func (t *TableWriter) Rows() int {
	return t.rows
}

func (t *TableWriter) write(record []string) error {
	if err := t.csv.Write(record); err != nil {
		return fmt.Errorf("write csv record: %w", err)
	}
	t.csv.Flush()
	if err := t.csv.Error(); err != nil {
		return fmt.Errorf("flush csv record: %w", err)
	}
	return nil
}
