package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"pulse/internal/insights/models"
)

var (
	adoptionColumns = []string{"industry", "year", "adoption_rate", "use_cases_count", "investment_millions"}
	usageColumns    = []string{"industry", "year", "bedrock_usage", "sagemaker_usage", "lambda_usage", "s3_usage", "ec2_usage"}
)

// ErrMissingColumns is returned when a CSV header lacks a required column.
var ErrMissingColumns = errors.New("missing required columns")

// RowError describes one rejected CSV row. Line is 1-based and counts the header.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Report summarizes one parsed file.
type Report struct {
	Processed int
	Valid     int
	Rejected  []RowError
}

// Loader reads the two CSV datasets and joins them.
type Loader struct {
	logger *slog.Logger
}

type LoaderOption func(*Loader)

func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load parses both files and returns the aligned records.
func (l *Loader) Load(ctx context.Context, adoptionPath, usagePath string) ([]models.AlignedRecord, error) {
	adoption, usage, err := l.Read(ctx, adoptionPath, usagePath)
	if err != nil {
		return nil, err
	}
	records := Join(adoption, usage)
	l.logger.InfoContext(ctx, "dataset loaded",
		"adoption_rows", len(adoption),
		"usage_rows", len(usage),
		"aligned_records", len(records),
	)
	return records, nil
}

// Read parses both files concurrently. Invalid rows are skipped and logged;
// a missing file or header is an error.
func (l *Loader) Read(ctx context.Context, adoptionPath, usagePath string) ([]AdoptionRow, []UsageRow, error) {
	var (
		adoption []AdoptionRow
		usage    []UsageRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, report, err := readFile(gctx, adoptionPath, ReadAdoption)
		if err != nil {
			return fmt.Errorf("load adoption data: %w", err)
		}
		l.logReport(gctx, adoptionPath, report)
		adoption = rows
		return nil
	})
	g.Go(func() error {
		rows, report, err := readFile(gctx, usagePath, ReadUsage)
		if err != nil {
			return fmt.Errorf("load usage data: %w", err)
		}
		l.logReport(gctx, usagePath, report)
		usage = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return adoption, usage, nil
}

func (l *Loader) logReport(ctx context.Context, path string, report Report) {
	for _, rej := range report.Rejected {
		l.logger.WarnContext(ctx, "csv row rejected", "file", path, "line", rej.Line, "reason", rej.Reason)
	}
	l.logger.DebugContext(ctx, "csv file parsed",
		"file", path,
		"processed", report.Processed,
		"valid", report.Valid,
		"rejected", len(report.Rejected),
	)
}

func readFile[T any](ctx context.Context, path string, read func(io.Reader) ([]T, Report, error)) ([]T, Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, Report{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, Report{}, err
	}
	defer f.Close()
	return read(f)
}

// ReadAdoption parses the GenAI adoption dataset.
func ReadAdoption(r io.Reader) ([]AdoptionRow, Report, error) {
	return readRows(r, adoptionColumns, func(f fields) (AdoptionRow, error) {
		row := AdoptionRow{
			Industry:           f.text("industry"),
			Year:               f.integer("year"),
			AdoptionRate:       f.float("adoption_rate"),
			UseCasesCount:      f.integer("use_cases_count"),
			InvestmentMillions: f.float("investment_millions"),
		}
		if f.err != nil {
			return row, f.err
		}
		switch {
		case row.Industry == "":
			return row, errors.New("industry is required")
		case row.Year < MinYear || row.Year > MaxYear:
			return row, fmt.Errorf("year %d out of range", row.Year)
		case row.AdoptionRate < 0 || row.AdoptionRate > 1:
			return row, fmt.Errorf("adoption_rate %g out of range", row.AdoptionRate)
		case row.UseCasesCount < 0 || row.UseCasesCount > 100:
			return row, fmt.Errorf("use_cases_count %d out of range", row.UseCasesCount)
		case row.InvestmentMillions < 0 || row.InvestmentMillions > 10000:
			return row, fmt.Errorf("investment_millions %g out of range", row.InvestmentMillions)
		}
		return row, nil
	})
}

// ReadUsage parses the cloud service usage dataset.
func ReadUsage(r io.Reader) ([]UsageRow, Report, error) {
	return readRows(r, usageColumns, func(f fields) (UsageRow, error) {
		row := UsageRow{
			Industry:  f.text("industry"),
			Year:      f.integer("year"),
			Bedrock:   f.float("bedrock_usage"),
			SageMaker: f.float("sagemaker_usage"),
			Lambda:    f.float("lambda_usage"),
			S3:        f.float("s3_usage"),
			EC2:       f.float("ec2_usage"),
		}
		if f.err != nil {
			return row, f.err
		}
		if row.Industry == "" {
			return row, errors.New("industry is required")
		}
		if row.Year < MinYear || row.Year > MaxYear {
			return row, fmt.Errorf("year %d out of range", row.Year)
		}
		for _, v := range []float64{row.Bedrock, row.SageMaker, row.Lambda, row.S3, row.EC2} {
			if v < 0 || v > 1 {
				return row, fmt.Errorf("usage %g out of range", v)
			}
		}
		return row, nil
	})
}

func readRows[T any](r io.Reader, required []string, parse func(fields) (T, error)) ([]T, Report, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, Report{}, errors.New("empty file")
	}
	if err != nil {
		return nil, Report{}, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, Report{}, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var (
		out    []T
		report Report
	)
	cr.FieldsPerRecord = -1
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, report, fmt.Errorf("read line %d: %w", line, err)
		}
		report.Processed++
		row, err := parse(fields{index: index, values: rec})
		if err != nil {
			report.Rejected = append(report.Rejected, RowError{Line: line, Reason: err.Error()})
			continue
		}
		report.Valid++
		out = append(out, row)
	}
	return out, report, nil
}

// fields reads named columns from one CSV record, remembering the first parse error.
type fields struct {
	index  map[string]int
	values []string
	err    error
}

func (f *fields) text(name string) string {
	i := f.index[name]
	if i >= len(f.values) {
		return ""
	}
	return strings.TrimSpace(f.values[i])
}

func (f *fields) integer(name string) int {
	raw := f.text(name)
	v, err := strconv.Atoi(raw)
	if err != nil && f.err == nil {
		f.err = fmt.Errorf("%s: invalid integer %q", name, raw)
	}
	return v
}

func (f *fields) float(name string) float64 {
	raw := f.text(name)
	v, err := strconv.ParseFloat(raw, 64)
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		err = errors.New("not finite")
	}
	if err != nil && f.err == nil {
		f.err = fmt.Errorf("%s: invalid number %q", name, raw)
	}
	return v
}
