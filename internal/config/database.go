package config

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"
)

// LoadDatabase connects to Postgres and brings the schema up to date.
func LoadDatabase() (*sql.DB, error) {
	connectDbUrl := os.Getenv("DATABASE_URL")
	if connectDbUrl == "" {
		dbName := os.Getenv("POSTGRES_DB")
		dbUserName := os.Getenv("POSTGRES_USER")
		dbPassword := os.Getenv("POSTGRES_PASSWORD")
		dbHost := getEnv("POSTGRES_HOST", "db")

		if dbName == "" || dbUserName == "" || dbPassword == "" {
			return nil, fmt.Errorf("set DATABASE_URL or POSTGRES_DB, POSTGRES_USER and POSTGRES_PASSWORD")
		}

		connectDbUrl = fmt.Sprintf("postgres://%v:%v@%v:5432/%v?sslmode=disable", dbUserName, dbPassword, dbHost, dbName)
	}

	db, err := sql.Open("postgres", connectDbUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the DB: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach the DB: %v", err)
	}

	migrationsDir := "./sql/schema"
	if err := goose.Up(db, migrationsDir); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	version, err := goose.EnsureDBVersion(db)
	if err != nil {
		return nil, fmt.Errorf("failed to get DB version: %v", err)
	}
	log.Printf("Migrations applied successfully. Current DB version: %d", version)

	return db, nil
}
