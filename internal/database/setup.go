package database

import (
	"chatcore/internal/models"
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DB is the transactional store. Every read and every transaction it hands
// out is bounded by timeout.
type DB struct {
	*sql.DB
	Dialect Dialect
	timeout time.Duration
	sugar   *zap.SugaredLogger
}

// Queryer is satisfied by both *sql.DB and *sql.Tx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readPragmaValues(db *sql.DB, sugar *zap.SugaredLogger) error {
	var foreignKeysValue bool
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeysValue)
	if err != nil {
		return err
	}
	if !foreignKeysValue {
		return fmt.Errorf("sqlite foreign keys are not enforced")
	}

	var journalModeValue string
	err = db.QueryRow("PRAGMA journal_mode").Scan(&journalModeValue)
	if err != nil {
		return err
	}

	var synchronousValue int
	err = db.QueryRow("PRAGMA synchronous").Scan(&synchronousValue)
	if err != nil {
		return err
	}

	var synchronousValueStr string
	switch synchronousValue {
	case 0:
		synchronousValueStr = "off"
	case 1:
		synchronousValueStr = "normal"
	case 2:
		synchronousValueStr = "full"
	case 3:
		synchronousValueStr = "extra"
	default:
		return fmt.Errorf("synchronous value is unsupported")
	}

	sugar.Debugw("sqlite pragmas",
		"foreign_keys", foreignKeysValue,
		"journal_mode", journalModeValue,
		"synchronous", synchronousValueStr,
	)

	return nil
}

func Setup(cfg *models.ConfigFile, sugar *zap.SugaredLogger) (*DB, error) {
	if cfg.SelfContained {
		sugar.Infof("Connecting to database sqlite at %s...", cfg.SqlitePath)
		return OpenSqlite(cfg.SqlitePath, cfg.StoreTimeout, sugar)
	}

	sugar.Infof("Connecting to database mysql/mariadb at %s:%s...", cfg.DbAddress, cfg.DbPort)
	return OpenMysql(cfg, sugar)
}

func OpenSqlite(path string, timeout time.Duration, sugar *zap.SugaredLogger) (*DB, error) {
	// pragmas go into the DSN so that a reopened connection gets them too
	pragmas := url.Values{}
	pragmas.Add("_pragma", "foreign_keys(1)")
	pragmas.Add("_pragma", "journal_mode(WAL)")
	pragmas.Add("_pragma", "synchronous(normal)")
	pragmas.Add("_pragma", "busy_timeout(5000)")

	sqlDB, err := sql.Open("sqlite", "file:"+path+"?"+pragmas.Encode())
	if err != nil {
		return nil, err
	}

	// there can be sqlite busy errors if this is not set to 1
	sqlDB.SetMaxOpenConns(1)

	if err = readPragmaValues(sqlDB, sugar); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db := &DB{DB: sqlDB, Dialect: Sqlite, timeout: timeout, sugar: sugar}
	if err = db.setupTables(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return db, nil
}

func OpenMysql(cfg *models.ConfigFile, sugar *zap.SugaredLogger) (*DB, error) {
	mysqlCfg := mysql.NewConfig()
	mysqlCfg.User = cfg.DbUser
	mysqlCfg.Passwd = cfg.DbPassword
	mysqlCfg.Net = "tcp"
	mysqlCfg.Addr = fmt.Sprintf("%s:%s", cfg.DbAddress, cfg.DbPort)
	mysqlCfg.DBName = cfg.DbDatabase
	mysqlCfg.ParseTime = true
	mysqlCfg.Loc = time.UTC
	mysqlCfg.Timeout = 10 * time.Second
	mysqlCfg.Params = map[string]string{
		"charset":   "utf8mb4",
		"time_zone": "'+00:00'",
	}

	connector, err := mysql.NewConnector(mysqlCfg)
	if err != nil {
		return nil, err
	}

	sqlDB := sql.OpenDB(connector)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
	defer cancel()
	if err = sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db := &DB{DB: sqlDB, Dialect: Mysql, timeout: cfg.StoreTimeout, sugar: sugar}
	if err = db.setupTables(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) setupTables() error {
	for _, statement := range db.Dialect.schema() {
		if _, err := db.Exec(statement); err != nil {
			return fmt.Errorf("%w while running %q", err, statement)
		}
	}
	return nil
}
