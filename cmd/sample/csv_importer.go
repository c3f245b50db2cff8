package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	formakv "github.com/lychee-technology/formakv"
	"go.uber.org/zap"
)

// ImportError represents an error that occurred while importing a single CSV row.
type ImportError struct {
	RowNumber int    // CSV row number (1-based, including header)
	CSVColumn string // CSV column name that caused the error
	Field     string // Target model field
	RawValue  string // Original CSV value
	Reason    string
}

func (e *ImportError) Error() string {
	if e.CSVColumn == "" {
		return fmt.Sprintf("row %d: %s", e.RowNumber, e.Reason)
	}
	return fmt.Sprintf("row %d, column %q -> field %q: value %q - %s",
		e.RowNumber, e.CSVColumn, e.Field, e.RawValue, e.Reason)
}

// ImportResult contains the results of a CSV import operation.
type ImportResult struct {
	TotalRows    int
	SuccessCount int
	FailedCount  int
	Errors       []*ImportError
	Saved        []*formakv.Instance
	Duration     time.Duration
}

// Summary returns a human-readable summary of the import result.
func (r *ImportResult) Summary() string {
	return fmt.Sprintf("Import completed: %d/%d rows successful, %d failed, duration: %v",
		r.SuccessCount, r.TotalRows, r.FailedCount, r.Duration)
}

// CSVImporter imports CSV rows as books, creating authors on first sight.
type CSVImporter struct {
	books   *formakv.Model
	authors *formakv.Model
	mapper  CSVToModelMapper
	dryRun  bool
	logger  *zap.SugaredLogger

	authorsByName map[string]*formakv.Instance
}

func NewCSVImporter(books, authors *formakv.Model, mapper CSVToModelMapper, dryRun bool) *CSVImporter {
	return &CSVImporter{
		books:         books,
		authors:       authors,
		mapper:        mapper,
		dryRun:        dryRun,
		logger:        zap.S().Named("Import"),
		authorsByName: make(map[string]*formakv.Instance),
	}
}

// ImportFromFile imports CSV data from a file.
func (i *CSVImporter) ImportFromFile(ctx context.Context, filePath string) (*ImportResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	return i.ImportFromReader(ctx, file)
}

// ImportFromReader imports CSV data from reader. Row failures are collected,
// not returned.
func (i *CSVImporter) ImportFromReader(ctx context.Context, reader io.Reader) (*ImportResult, error) {
	startTime := time.Now()

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	result := &ImportResult{Errors: make([]*ImportError, 0)}
	rowNum := 1 // Header is row 1

	for {
		rowNum++
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			i.fail(result, &ImportError{RowNumber: rowNum, Reason: fmt.Sprintf("CSV parsing error: %v", err)})
			continue
		}
		result.TotalRows++

		csvRecord := make(map[string]string, len(header))
		for idx, col := range header {
			if idx < len(record) {
				csvRecord[col] = record[idx]
			}
		}

		book, err := i.importRow(ctx, csvRecord)
		if err != nil {
			importErr := &ImportError{RowNumber: rowNum, Reason: err.Error()}
			var mappingErr *MappingError
			if errors.As(err, &mappingErr) {
				importErr.CSVColumn = mappingErr.CSVColumn
				importErr.Field = mappingErr.Field
				importErr.RawValue = mappingErr.RawValue
				importErr.Reason = mappingErr.Reason
			}
			i.fail(result, importErr)
			continue
		}
		result.SuccessCount++
		result.Saved = append(result.Saved, book)
	}

	result.Duration = time.Since(startTime)
	i.logger.Info(result.Summary())
	return result, nil
}

func (i *CSVImporter) fail(result *ImportResult, err *ImportError) {
	i.logger.Warnw("row failed", "row", err.RowNumber, "error", err.Error())
	result.FailedCount++
	result.Errors = append(result.Errors, err)
}

func (i *CSVImporter) importRow(ctx context.Context, csvRecord map[string]string) (*formakv.Instance, error) {
	doc, err := i.mapper.MapRecord(csvRecord)
	if err != nil {
		return nil, err
	}

	authorName, _ := doc[authorColumn].(string)
	delete(doc, authorColumn)
	author, err := i.author(ctx, authorName)
	if err != nil {
		return nil, err
	}
	if author.ID() != "" {
		doc["author_id"] = author.ID()
	}

	book, err := i.books.FromDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	if i.dryRun {
		return book, book.Validate(ctx)
	}
	if err := book.Save(ctx); err != nil {
		return nil, err
	}
	return book, nil
}

func (i *CSVImporter) author(ctx context.Context, name string) (*formakv.Instance, error) {
	if a, ok := i.authorsByName[name]; ok {
		return a, nil
	}
	a := i.authors.New()
	if err := a.Set("name", name); err != nil {
		return nil, err
	}
	if i.dryRun {
		if err := a.Validate(ctx); err != nil {
			return nil, err
		}
	} else if err := a.Save(ctx); err != nil {
		return nil, err
	}
	i.authorsByName[name] = a
	return a, nil
}
