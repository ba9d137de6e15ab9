package dataset

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"pulse/internal/insights/models"
	"pulse/pkg/platform/tx"
)

// Schema creates the two observation tables. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS genai_adoption (
	industry            TEXT             NOT NULL,
	year                INTEGER          NOT NULL,
	adoption_rate       DOUBLE PRECISION NOT NULL,
	use_cases_count     INTEGER          NOT NULL,
	investment_millions DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (industry, year)
);

CREATE TABLE IF NOT EXISTS cloud_usage (
	industry        TEXT             NOT NULL,
	year            INTEGER          NOT NULL,
	bedrock_usage   DOUBLE PRECISION NOT NULL,
	sagemaker_usage DOUBLE PRECISION NOT NULL,
	lambda_usage    DOUBLE PRECISION NOT NULL,
	s3_usage        DOUBLE PRECISION NOT NULL,
	ec2_usage       DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (industry, year)
);
`

const alignedQuery = `
	SELECT a.industry, a.year, a.adoption_rate, a.use_cases_count, a.investment_millions,
		u.bedrock_usage, u.sagemaker_usage, u.lambda_usage, u.s3_usage, u.ec2_usage
	FROM genai_adoption a
	JOIN cloud_usage u ON u.industry = a.industry AND u.year = a.year
	WHERE ($1::INTEGER IS NULL OR a.year = $1)
		AND (cardinality($2::TEXT[]) = 0 OR a.industry = ANY($2))
	ORDER BY a.industry, a.year
`

// PostgresStore reads aligned records from PostgreSQL, joining the adoption
// and usage tables on (industry, year).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record source.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate dataset schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) AlignedRecords(ctx context.Context, filters models.FilterSignature) ([]models.AlignedRecord, error) {
	var year sql.NullInt64
	if y, ok := filters.Year(); ok {
		year = sql.NullInt64{Int64: int64(y), Valid: true}
	}
	industries := filters.Industries()
	if industries == nil {
		industries = []string{}
	}

	rows, err := s.db.QueryContext(ctx, alignedQuery, year, pq.Array(industries))
	if err != nil {
		return nil, fmt.Errorf("query aligned records: %w", err)
	}
	defer rows.Close()

	out := make([]models.AlignedRecord, 0)
	for rows.Next() {
		var (
			a AdoptionRow
			u UsageRow
		)
		if err := rows.Scan(
			&a.Industry, &a.Year, &a.AdoptionRate, &a.UseCasesCount, &a.InvestmentMillions,
			&u.Bedrock, &u.SageMaker, &u.Lambda, &u.S3, &u.EC2,
		); err != nil {
			return nil, fmt.Errorf("scan aligned record: %w", err)
		}
		out = append(out, models.AlignedRecord{
			Industry:           a.Industry,
			Year:               a.Year,
			AdoptionRate:       a.AdoptionRate,
			UsageScore:         u.Score(),
			InvestmentMillions: a.InvestmentMillions,
			UseCasesCount:      a.UseCasesCount,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aligned records: %w", err)
	}
	return out, nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// Import upserts both datasets in one transaction.
func (s *PostgresStore) Import(ctx context.Context, adoption []AdoptionRow, usage []UsageRow) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		if err := s.UpsertAdoption(ctx, adoption); err != nil {
			return err
		}
		return s.UpsertUsage(ctx, usage)
	})
}

// UpsertAdoption writes adoption rows, joining a transaction carried by ctx.
func (s *PostgresStore) UpsertAdoption(ctx context.Context, rows []AdoptionRow) error {
	exec := s.execer(ctx)
	for _, a := range rows {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO genai_adoption (industry, year, adoption_rate, use_cases_count, investment_millions)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (industry, year) DO UPDATE SET
				adoption_rate = EXCLUDED.adoption_rate,
				use_cases_count = EXCLUDED.use_cases_count,
				investment_millions = EXCLUDED.investment_millions
		`, a.Industry, a.Year, a.AdoptionRate, a.UseCasesCount, a.InvestmentMillions)
		if err != nil {
			return fmt.Errorf("import adoption row %s/%d: %w", a.Industry, a.Year, err)
		}
	}
	return nil
}

// UpsertUsage writes usage rows, joining a transaction carried by ctx.
func (s *PostgresStore) UpsertUsage(ctx context.Context, rows []UsageRow) error {
	exec := s.execer(ctx)
	for _, u := range rows {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO cloud_usage (industry, year, bedrock_usage, sagemaker_usage, lambda_usage, s3_usage, ec2_usage)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (industry, year) DO UPDATE SET
				bedrock_usage = EXCLUDED.bedrock_usage,
				sagemaker_usage = EXCLUDED.sagemaker_usage,
				lambda_usage = EXCLUDED.lambda_usage,
				s3_usage = EXCLUDED.s3_usage,
				ec2_usage = EXCLUDED.ec2_usage
		`, u.Industry, u.Year, u.Bedrock, u.SageMaker, u.Lambda, u.S3, u.EC2)
		if err != nil {
			return fmt.Errorf("import usage row %s/%d: %w", u.Industry, u.Year, err)
		}
	}
	return nil
}
