package database

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"
	"github.com/classpilot/api/config"
)

// Storage defines the interface that all database implementations must satisfy
type Storage interface {
	// Lifecycle methods
	Init() error
	Close() error
	HealthCheck() error

	// GetDB returns the underlying handle: *gorm.DB for GORMStore,
	// *sql.DB for PostgreSQLStore.
	GetDB() interface{}
}

// PostgreSQLStore is a raw database/sql store used by ops tooling (health
// checks, the seed CLI) where GORM is not needed.
type PostgreSQLStore struct {
	db *sql.DB
}

func Start() (*PostgreSQLStore, error) {
	getEnv, err := config.Get()
	if err != nil {
		return nil, err
	}

	connStr := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		getEnv.DB_HOST,
		getEnv.DB_USER_NAME,
		getEnv.DB_PASSWORD,
		getEnv.DB_NAME,
		getEnv.DB_PORT,
		getEnv.DB_SSL_MODE,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Println("Unable to open PostgreSQL connection:", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		log.Println("Unable to reach PostgreSQL:", err)
		return nil, err
	}

	return &PostgreSQLStore{db: db}, nil
}

// Init is a no-op for the raw store; migrations run through GORM.
func (s *PostgreSQLStore) Init() error {
	return nil
}

func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}

func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}

func (s *PostgreSQLStore) GetDB() interface{} {
	return s.db
}

// CountRows returns the row count of a table, for seed/ops sanity checks.
func (s *PostgreSQLStore) CountRows(table string) (int64, error) {
	var count int64
	// table names come from code, never from user input
	err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
	return count, err
}
