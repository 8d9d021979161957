// Package sqlstore implementuje store.Store na bazie SQL (SQLite albo PostgreSQL).
// Zapytania buduje goqu, wykonuje je sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"digilib/internal/store"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrReadOnly zwracany przy próbie zapisu w transakcji View
var ErrReadOnly = errors.New("sqlstore: transakcja tylko do odczytu")

// Store to magazyn SQL
type Store struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
	driver  string
}

// Open łączy się z bazą i tworzy schemat. driver to "sqlite" albo "postgres".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = sqlx.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("błąd otwierania bazy SQLite: %w", err)
		}
		// SQLite pozwala na jednego pisarza naraz
		db.SetMaxOpenConns(1)
	case DriverPostgres:
		db, err = sqlx.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("błąd otwierania bazy PostgreSQL: %w", err)
		}
	default:
		return nil, fmt.Errorf("nieznany sterownik bazy: %q", driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("błąd połączenia z bazą: %w", err)
	}

	s := New(db, driver)
	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("błąd konfiguracji SQLite: %w", err)
		}
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New opakowuje istniejące połączenie. Nie tworzy schematu.
func New(db *sqlx.DB, driver string) *Store {
	dialect := "sqlite3"
	if driver == DriverPostgres {
		dialect = "postgres"
	}
	return &Store{db: db, dialect: goqu.Dialect(dialect), driver: driver}
}

// Migrate tworzy brakujące tabele i indeksy
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("błąd migracji schematu: %w", err)
		}
	}
	return nil
}

// Update wykonuje fn w jednej transakcji bazy
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, false, fn)
}

// View wykonuje fn w transakcji tylko do odczytu
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(store.Tx) error) error {
	var opts *sql.TxOptions
	if readOnly && s.driver == DriverPostgres {
		opts = &sql.TxOptions{ReadOnly: true}
	}
	sqlTx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("błąd rozpoczęcia transakcji: %w", err)
	}

	t := &tx{
		ctx:       ctx,
		tx:        sqlTx,
		d:         s.dialect,
		readOnly:  readOnly,
		forUpdate: !readOnly && s.driver == DriverPostgres,
	}
	if err := fn(t); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("błąd wycofania transakcji: %w", rbErr))
		}
		return err
	}
	if readOnly {
		return sqlTx.Rollback()
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("błąd zatwierdzenia transakcji: %w", err)
	}
	return nil
}

// Close zamyka połączenie z bazą
func (s *Store) Close() error {
	return s.db.Close()
}

// DB zwraca połączenie, np. dla narzędzi administracyjnych
func (s *Store) DB() *sqlx.DB {
	return s.db
}
