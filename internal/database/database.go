package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/h4ks-com/crop-notifier/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the store named by databaseURL. An empty URL or ":memory:" gives a
// private in-memory sqlite database, "sqlite:<path>" a file database, "mysql://<dsn>"
// a MySQL database and anything else is handed to the postgres driver.
func Connect(databaseURL string) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// sqlite compares timestamps as text, so every stored time has to share one zone.
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	memory := databaseURL == "" || databaseURL == ":memory:"
	switch {
	case memory:
		db, err = gorm.Open(sqlite.Open(":memory:"), config)
	case strings.HasPrefix(databaseURL, "sqlite:"):
		dbPath := strings.TrimPrefix(databaseURL, "sqlite:")
		dbPath = dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
		db, err = gorm.Open(sqlite.Open(dbPath), config)
	case strings.HasPrefix(databaseURL, "mysql://"):
		dsn := strings.TrimPrefix(databaseURL, "mysql://")
		if !strings.Contains(dsn, "parseTime") {
			dsn = appendQuery(dsn, "parseTime=true&loc=UTC")
		}
		db, err = gorm.Open(mysql.Open(dsn), config)
	default:
		db, err = gorm.Open(postgres.Open(databaseURL), config)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if memory {
		// Each pooled connection would otherwise get its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func appendQuery(dsn, query string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + query
	}
	return dsn + "?" + query
}

func Migrate(db *gorm.DB) error {
	log.Info().Msg("running database migrations")

	err := db.AutoMigrate(
		&models.User{},
		&models.CropType{},
		&models.UserCrop{},
		&models.Notification{},
	)

	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info().Msg("database migrations completed")
	return nil
}
