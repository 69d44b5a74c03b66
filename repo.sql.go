package main

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"    // mysql dialect
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // postgres dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // sqlite3 dialect
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
	DriverMySQL    = "mysql"
)

// dialects maps each supported driver to its goqu dialect. The dialect
// name is also the name of the embedded schema file.
var dialects = map[string]string{
	DriverSQLite:   "sqlite3",
	DriverPostgres: "postgres",
	DriverPGX:      "postgres",
	DriverMySQL:    "mysql",
}

//go:embed schema/*.sql
var schemaFiles embed.FS

// Catalog tables.
const (
	tableGenre        = "catalog_genre"
	tableLanguage     = "catalog_language"
	tableAuthor       = "catalog_author"
	tableBook         = "catalog_book"
	tableBookGenre    = "catalog_book_genre"
	tableBookInstance = "catalog_bookinstance"
	tableUser         = "auth_user"
)

// sequenceTables lists the tables with generated integer ids.
var sequenceTables = []string{tableGenre, tableLanguage, tableAuthor, tableBook, tableUser}

type opKind int

const (
	opRead opKind = iota
	opWrite
	opDelete
)

type sqlCatalogStorage struct {
	logger  *zap.Logger
	db      *sqlx.DB
	driver  string
	dialect goqu.DialectWrapper
}

// GetSQLClient opens the configured database, tunes its connections pool,
// waits for it to be reachable then applies the catalog schema.
func GetSQLClient(config *Config) (*sqlx.DB, error) {
	dbc := config.Database
	var db *sqlx.DB
	var err error
	switch dbc.Driver {
	case DriverPGX:
		connConfig, perr := pgx.ParseConfig(dbc.DSN)
		if perr != nil {
			return nil, fmt.Errorf("failed to parse pgx dsn: %v", perr)
		}
		if dbc.ConnectTimeout > 0 {
			connConfig.ConnectTimeout = dbc.ConnectTimeout
		}
		db = sqlx.NewDb(stdlib.OpenDB(*connConfig), DriverPGX)
	case DriverSQLite:
		db, err = sqlx.Open(dbc.Driver, sqliteDSN(dbc.DSN))
		if err != nil {
			return nil, fmt.Errorf("failed to open the database: %v", err)
		}
	case DriverPostgres, DriverMySQL:
		db, err = sqlx.Open(dbc.Driver, dbc.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open the database: %v", err)
		}
	default:
		return nil, fmt.Errorf("database driver %q: %w", dbc.Driver, ErrUnsupportedDriver)
	}

	if dbc.MaxOpenConns > 0 {
		db.SetMaxOpenConns(dbc.MaxOpenConns)
	}
	if dbc.MaxIdleConns > 0 {
		db.SetMaxIdleConns(dbc.MaxIdleConns)
	}
	db.SetConnMaxLifetime(dbc.ConnMaxLifetime)
	db.SetConnMaxIdleTime(dbc.ConnMaxIdleTime)

	// wait for the database to be ready.
	for i := 0; i <= dbc.PingRetries; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		if i < dbc.PingRetries {
			time.Sleep(time.Second)
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping the database: %v", err)
	}

	if err = ApplySchema(context.Background(), db, dbc.Driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply the schema: %v", err)
	}
	return db, nil
}

// sqliteDSN turns foreign keys enforcement on whatever the dsn says.
// SQLite leaves it off per connection by default.
func sqliteDSN(dsn string) string {
	path, rawQuery, _ := strings.Cut(dsn, "?")
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		params = url.Values{}
	}
	params.Del("_fk")
	params.Set("_foreign_keys", "on")
	return path + "?" + params.Encode()
}

// ApplySchema creates the catalog tables which do not exist yet.
func ApplySchema(ctx context.Context, db *sqlx.DB, driver string) error {
	dialect, ok := dialects[driver]
	if !ok {
		return fmt.Errorf("database driver %q: %w", driver, ErrUnsupportedDriver)
	}
	content, err := schemaFiles.ReadFile("schema/" + dialect + ".sql")
	if err != nil {
		return err
	}
	for _, stmt := range strings.Split(string(content), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err = db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %q: %w", strings.TrimSpace(stmt), err)
		}
	}
	return nil
}

// NewSQLCatalogStorage provides an instance of sql-based catalog storage.
func NewSQLCatalogStorage(logger *zap.Logger, driver string, db *sqlx.DB) CatalogStorage {
	return &sqlCatalogStorage{
		logger:  logger,
		db:      db,
		driver:  driver,
		dialect: goqu.Dialect(dialects[driver]),
	}
}

// Ping checks the database is reachable.
func (s *sqlCatalogStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close shuts down the connections pool.
func (s *sqlCatalogStorage) Close() error {
	return s.db.Close()
}

func (s *sqlCatalogStorage) isPostgres() bool {
	return dialects[s.driver] == "postgres"
}

// ResetSequences aligns the postgres id sequences with the stored ids. This is
// needed after records were inserted with explicit ids.
func (s *sqlCatalogStorage) ResetSequences(ctx context.Context) error {
	if !s.isPostgres() {
		return nil
	}
	for _, table := range sequenceTables {
		stmt := fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE(MAX(id), 1), MAX(id) IS NOT NULL) FROM %[1]s`,
			table,
		)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset sequence of %s: %w", table, err)
		}
	}
	return nil
}

// insert adds a row and returns its generated id. The record must not
// contain the id column unless it is explicitly set.
func (s *sqlCatalogStorage) insert(ctx context.Context, ex sqlx.ExtContext, table string, record goqu.Record) (int64, error) {
	ds := s.dialect.Insert(table).Rows(record).Prepared(true)
	if s.isPostgres() {
		query, args, err := ds.Returning("id").ToSQL()
		if err != nil {
			return 0, err
		}
		var id int64
		if err = ex.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, s.translateError(err, opWrite)
		}
		return id, nil
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, err
	}
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, s.translateError(err, opWrite)
	}
	if id, ok := record["id"]; ok {
		if v, ok := id.(int64); ok {
			return v, nil
		}
	}
	return res.LastInsertId()
}

// exec runs a built statement and fails with ErrRecordNotFound when
// no row matched the given primary key.
func (s *sqlCatalogStorage) exec(ctx context.Context, ex sqlx.ExtContext, op opKind, ds interface {
	ToSQL() (string, []interface{}, error)
}, table string, id interface{},
) error {
	query, args, err := ds.ToSQL()
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return s.translateError(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// mysql reports zero affected rows when an update does not change values.
	exists, err := s.exists(ctx, ex, table, id)
	if err != nil {
		return err
	}
	if !exists || op == opDelete {
		return ErrRecordNotFound
	}
	return nil
}

func (s *sqlCatalogStorage) exists(ctx context.Context, ex sqlx.ExtContext, table string, id interface{}) (bool, error) {
	var count int
	err := s.get(ctx, ex, &count, s.dialect.From(table).Select(goqu.COUNT("*")).Where(goqu.C("id").Eq(id)))
	return count > 0, err
}

func (s *sqlCatalogStorage) count(ctx context.Context, ds *goqu.SelectDataset) (int, error) {
	var count int
	err := s.get(ctx, s.db, &count, ds.Select(goqu.COUNT("*")).ClearOrder().ClearLimit().ClearOffset())
	return count, err
}

func (s *sqlCatalogStorage) get(ctx context.Context, q sqlx.QueryerContext, dest interface{}, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return err
	}
	return s.translateError(sqlx.GetContext(ctx, q, dest, query, args...), opRead)
}

func (s *sqlCatalogStorage) selectAll(ctx context.Context, dest interface{}, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return err
	}
	s.logger.Debug("sql: select", zap.String("query", query))
	return s.translateError(sqlx.SelectContext(ctx, s.db, dest, query, args...), opRead)
}

func (s *sqlCatalogStorage) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			s.logger.Error("sql: failed to rollback transaction", zap.Error(rerr))
		}
		return err
	}
	return tx.Commit()
}

func paginate(ds *goqu.SelectDataset, page Page) *goqu.SelectDataset {
	if page.Limit > 0 {
		ds = ds.Limit(uint(page.Limit))
	}
	if page.Offset > 0 {
		ds = ds.Offset(uint(page.Offset))
	}
	return ds
}

// translateError maps the drivers specific constraint errors to the
// storage sentinel errors. A foreign key failure means a protected
// reference on delete and a missing reference on insert or update.
func (s *sqlCatalogStorage) translateError(err error, op opKind) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}

	var unique, foreignKey bool
	var sqliteErr sqlite3.Error
	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	var mysqlErr *mysql.MySQLError
	switch {
	case errors.As(err, &sqliteErr):
		unique = sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
		foreignKey = sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	case errors.As(err, &pqErr):
		unique = pqErr.Code == "23505"
		foreignKey = pqErr.Code == "23503"
	case errors.As(err, &pgErr):
		unique = pgErr.Code == "23505"
		foreignKey = pgErr.Code == "23503"
	case errors.As(err, &mysqlErr):
		unique = mysqlErr.Number == 1062
		foreignKey = mysqlErr.Number == 1451 || mysqlErr.Number == 1452
	}

	switch {
	case unique:
		return fmt.Errorf("%w: %v", ErrUniqueViolation, err)
	case foreignKey && op == opDelete:
		return fmt.Errorf("%w: %v", ErrProtectedRecord, err)
	case foreignKey:
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	return err
}

// nullable converts an optional id into a sql argument.
func nullable(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

// nullableDate converts a date into a sql argument.
func nullableDate(d Date) interface{} {
	if !d.Valid {
		return nil
	}
	return d.String()
}
