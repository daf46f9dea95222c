package database

import (
	"fmt"

	"github.com/Amund211/gamegate/internal/config"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const DB_NAME = "gamegate"

const LOCAL_CONNECTION_STRING = "user=postgres password=postgres dbname=gamegate sslmode=disable"

const MAIN_SCHEMA = "gamegate"
const TESTING_SCHEMA = "gamegate_test"

func GetSchemaName(isTesting bool) string {
	if isTesting {
		return TESTING_SCHEMA
	}
	return MAIN_SCHEMA
}

func NewPostgresDatabase(connectionString string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	err = createDatabaseIfNotExists(db, DB_NAME)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return db, nil
}

// NewPostgresDatabaseFromConfig connects to DB_DSN, falling back to the local
// database in development.
func NewPostgresDatabaseFromConfig(conf config.Config) (*sqlx.DB, error) {
	connectionString := conf.DBDSN()
	if connectionString == "" {
		if !conf.IsDevelopment() {
			return nil, fmt.Errorf("missing database connection string in non-development environment")
		}
		connectionString = LOCAL_CONNECTION_STRING
	}

	db, err := NewPostgresDatabase(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres database: %w", err)
	}

	return db, nil
}

func createDatabaseIfNotExists(db *sqlx.DB, dbName string) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM pg_database WHERE datname = $1", dbName); err != nil {
		return fmt.Errorf("createDB: failed to check if database exists: %w", err)
	}

	if count > 0 {
		return nil
	}

	_, err := db.Exec(fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName)))
	if err != nil {
		return fmt.Errorf("createDB: failed to create database: %w", err)
	}

	return nil
}
