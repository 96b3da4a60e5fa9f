package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
	log "github.com/sirupsen/logrus"

	"github.com/erzulfequar/OCR-Backend/pkg/config"
	"github.com/erzulfequar/OCR-Backend/pkg/models"
)

// ErrNotFound is returned when no invoice has the requested id.
var ErrNotFound = errors.New("invoice not found")

// ConnectDB establishes a connection to the PostgreSQL database
func ConnectDB(cfg config.DBConfig) (*sql.DB, error) {
	if cfg.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD environment variable is not set")
	}

	// Create the connection string
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	// Open a connection to the database
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	return db, nil
}

// InitDB initializes the database by creating the necessary tables if they don't exist
func InitDB(ctx context.Context, db *sql.DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS invoices (
		id SERIAL PRIMARY KEY,
		document JSONB NOT NULL,
		raw_record JSONB,
		document_name VARCHAR NOT NULL,
		strategy VARCHAR NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("error creating invoices table: %w", err)
	}

	log.Info("Database initialized successfully")
	return nil
}

// StoreInvoice stores a normalized document and, when known, the raw record it came from
func StoreInvoice(ctx context.Context, db *sql.DB, document, rawRecord []byte, documentName, strategy string) (int, error) {
	query := `
	INSERT INTO invoices (document, raw_record, document_name, strategy, created_at, updated_at)
	VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	RETURNING id`

	var raw any
	if len(rawRecord) > 0 {
		raw = rawRecord
	}

	var id int
	err := db.QueryRowContext(ctx, query, document, raw, documentName, strategy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error storing invoice: %w", err)
	}

	return id, nil
}

// GetInvoice loads a stored invoice by id
func GetInvoice(ctx context.Context, db *sql.DB, id int) (*models.StoredInvoice, error) {
	query := `
	SELECT id, document, raw_record, document_name, strategy, created_at, updated_at
	FROM invoices
	WHERE id = $1`

	var (
		inv      models.StoredInvoice
		document []byte
		raw      []byte
	)
	err := db.QueryRowContext(ctx, query, id).Scan(
		&inv.ID, &document, &raw, &inv.DocumentName, &inv.Strategy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading invoice %d: %w", id, err)
	}
	inv.Document = document
	inv.RawRecord = raw
	return &inv, nil
}

// Store binds the invoice queries to one connection pool
type Store struct {
	DB *sql.DB
}

func (s *Store) StoreInvoice(ctx context.Context, document, rawRecord []byte, documentName, strategy string) (int, error) {
	return StoreInvoice(ctx, s.DB, document, rawRecord, documentName, strategy)
}

func (s *Store) GetInvoice(ctx context.Context, id int) (*models.StoredInvoice, error) {
	return GetInvoice(ctx, s.DB, id)
}
