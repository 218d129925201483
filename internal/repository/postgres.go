package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"caradvisor/internal/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PostgresRepository serves the optional reference catalog of known market
// models and the append-only advisor run log
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	// Disable prepared statement caching to avoid "unnamed prepared
	// statement does not exist" errors behind poolers
	if !strings.Contains(dsn, "?") {
		dsn += "?prefer_simple_protocol=true"
	} else {
		dsn += "&prefer_simple_protocol=true"
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

const carColumns = `
	id, model_name, make, year, engine_cc, fuel_type, automatic,
	price_avg, description, tags, created_at, updated_at`

// LookupModel returns the best catalog row for a free-form model name, or
// nil when the catalog does not know the model
func (r *PostgresRepository) LookupModel(ctx context.Context, name string) (*model.CarModel, error) {
	var car model.CarModel
	query := fmt.Sprintf(`
		SELECT %s FROM car_catalog
		WHERE model_name ILIKE $1 OR $2 ILIKE '%%' || model_name || '%%'
		ORDER BY year DESC
		LIMIT 1
	`, carColumns)

	err := r.db.GetContext(ctx, &car, query, "%"+name+"%", name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up model: %w", err)
	}
	return &car, nil
}

// FilterCatalog returns catalog rows matching the profile's hard constraints
func (r *PostgresRepository) FilterCatalog(ctx context.Context, filter model.CatalogFilter, limit int) ([]model.CarModel, error) {
	whereClauses := []string{"1=1"}
	args := []interface{}{}
	argIndex := 1

	if filter.YearMin != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("year >= $%d", argIndex))
		args = append(args, *filter.YearMin)
		argIndex++
	}
	if filter.FuelType != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("fuel_type ILIKE $%d", argIndex))
		args = append(args, "%"+*filter.FuelType+"%")
		argIndex++
	}
	if filter.Automatic != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("automatic = $%d", argIndex))
		args = append(args, *filter.Automatic)
		argIndex++
	}
	if filter.EngineCCMin != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("engine_cc >= $%d", argIndex))
		args = append(args, *filter.EngineCCMin)
		argIndex++
	}
	if filter.EngineCCMax != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("engine_cc <= $%d", argIndex))
		args = append(args, *filter.EngineCCMax)
		argIndex++
	}
	if filter.PriceMin != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price_avg >= $%d", argIndex))
		args = append(args, *filter.PriceMin)
		argIndex++
	}
	if filter.PriceMax != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price_avg <= $%d", argIndex))
		args = append(args, *filter.PriceMax)
		argIndex++
	}

	query := fmt.Sprintf(`
		SELECT %s FROM car_catalog
		WHERE %s
		ORDER BY year DESC, model_name
		LIMIT $%d
	`, carColumns, strings.Join(whereClauses, " AND "), argIndex)
	args = append(args, limit)

	var cars []model.CarModel
	if err := r.db.SelectContext(ctx, &cars, query, args...); err != nil {
		return nil, fmt.Errorf("failed to filter catalog: %w", err)
	}
	return cars, nil
}

// SemanticSearch returns the catalog rows nearest to the query embedding
func (r *PostgresRepository) SemanticSearch(ctx context.Context, embedding []float32, limit int) ([]model.CarModel, error) {
	vec := pgvector.NewVector(embedding)
	query := fmt.Sprintf(`
		SELECT %s FROM car_catalog
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`, carColumns)

	var cars []model.CarModel
	if err := r.db.SelectContext(ctx, &cars, query, vec, limit); err != nil {
		return nil, fmt.Errorf("failed to run semantic search: %w", err)
	}
	return cars, nil
}

// BatchUpdateEmbeddings updates embeddings for multiple catalog rows.
// A single-item batch is the supported way to refresh one row.
func (r *PostgresRepository) BatchUpdateEmbeddings(ctx context.Context, items []model.EmbeddingItem) (int, []string) {
	success := 0
	var errors []string

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		errors = append(errors, fmt.Sprintf("failed to start transaction: %v", err))
		return success, errors
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `UPDATE car_catalog SET embedding = $1, updated_at = NOW() WHERE id = $2`)
	if err != nil {
		errors = append(errors, fmt.Sprintf("failed to prepare statement: %v", err))
		return success, errors
	}
	defer stmt.Close()

	for _, item := range items {
		vec := pgvector.NewVector(item.Embedding)
		if _, err := stmt.ExecContext(ctx, vec, item.CarID); err != nil {
			errors = append(errors, fmt.Sprintf("car_id %d: %v", item.CarID, err))
			continue
		}
		success++
	}

	if err := tx.Commit(); err != nil {
		errors = append(errors, fmt.Sprintf("failed to commit transaction: %v", err))
		return 0, errors
	}

	return success, errors
}

// LogRun appends one advisor run record. The log is write-only from the
// live path and exists for audit and debugging.
func (r *PostgresRepository) LogRun(ctx context.Context, run *model.RunRecord) error {
	query := `
		INSERT INTO advisor_runs (session_id, profile, candidates, records, recommendation, took_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.SessionID, run.Profile, run.Candidates, []byte(run.Records), run.Recommendation, run.TookMs)
	if err != nil {
		return fmt.Errorf("failed to log advisor run: %w", err)
	}
	return nil
}
