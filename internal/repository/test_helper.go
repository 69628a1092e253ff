package repository

import (
	"testing"

	"github.com/nimasrn/sms-verify/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AllEntities lists every table, in creation order, for AutoMigrate in tests.
var AllEntities = []any{
	&UserEntity{},
	&ServiceEntity{},
	&SessionEntity{},
	&TransactionEntity{},
	&EventEntity{},
	&SettingEntity{},
}

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	t.Helper()
	db, err := OpenTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return &testDB{
		DB:    pg.New(db, db),
		rawDB: db,
	}
}

// OpenTestDB opens a migrated in-memory sqlite database. The pool is capped at one
// connection since every sqlite :memory: connection is a separate database.
func OpenTestDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err = db.AutoMigrate(AllEntities...); err != nil {
		return nil, err
	}
	return db, nil
}
