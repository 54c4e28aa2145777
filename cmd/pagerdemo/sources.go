package main

import (
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Alp4ka/flowpager"
	"github.com/Alp4ka/flowpager/gormsource"
)

const _seedBatchSize = 100

var (
	_userColumns = gormsource.ColumnMapping{
		"id":   "id",
		"name": "name",
	}
	_userGetters = gormsource.Getters[user]{
		"id":   func(u user) any { return u.ID },
		"name": func(u user) any { return u.Name },
	}
)

// newPager builds the pager over the configured source. The returned close
// function releases the pager and the database connection, if any.
func newPager(cfg *Config, metrics *flowpager.Metrics, logger *zap.Logger) (usersPager, func(), error) {
	if cfg.Source.Kind == sourceMemory {
		p, err := flowpager.New[int, user](
			newUsersBackend(cfg.Source.Latency),
			lo.ToPtr(cfg.Source.InitialKey),
			cfg.Pager,
			flowpager.WithLogger[int, user](logger),
			flowpager.WithMetrics[int, user](metrics),
		)
		if err != nil {
			return nil, nil, err
		}

		return p, func() { _ = p.Close() }, nil
	}

	db, err := openDB(cfg.Source)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	if err := seedUsers(db, cfg.Source.Seed); err != nil {
		closeDB()
		return nil, nil, err
	}

	sort, err := gormsource.ParseSort(cfg.Source.Sort, _userColumns)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("parse source.sort: %w", err)
	}

	var p usersPager
	switch cfg.Source.Paging {
	case pagingKeyset:
		p, err = newKeysetPager(db.Model(&user{}), withTiebreaker(sort), cfg, metrics, logger)
	default:
		p, err = newOffsetPager(db.Model(&user{}), sort, cfg, metrics, logger)
	}
	if err != nil {
		closeDB()
		return nil, nil, err
	}

	return p, func() {
		_ = p.Close()
		closeDB()
	}, nil
}

func newOffsetPager(db *gorm.DB, sort gormsource.Orderings, cfg *Config, metrics *flowpager.Metrics, logger *zap.Logger) (usersPager, error) {
	source, err := gormsource.NewOffsetSource[user](db, sort...)
	if err != nil {
		return nil, err
	}

	return flowpager.New[int, user](
		source,
		lo.ToPtr(cfg.Source.InitialKey),
		cfg.Pager,
		flowpager.WithLogger[int, user](logger),
		flowpager.WithMetrics[int, user](metrics),
	)
}

func newKeysetPager(db *gorm.DB, sort gormsource.Orderings, cfg *Config, metrics *flowpager.Metrics, logger *zap.Logger) (usersPager, error) {
	source, err := gormsource.NewKeysetSource(db, _userGetters, sort...)
	if err != nil {
		return nil, err
	}

	return flowpager.New[string, user](
		source,
		nil,
		cfg.Pager,
		flowpager.WithLogger[string, user](logger),
		flowpager.WithMetrics[string, user](metrics),
	)
}

// withTiebreaker appends the primary key to orderings that do not contain it.
// Keyset cursors need a total order to never skip or repeat rows.
func withTiebreaker(sort gormsource.Orderings) gormsource.Orderings {
	if lo.ContainsBy(sort, func(o gormsource.OrderBy) bool { return o.Column == "id" }) {
		return sort
	}

	return append(sort, gormsource.OrderBy{Column: "id", Direction: sort[len(sort)-1].Direction})
}

func openDB(cfg SourceConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Kind {
	case sourceSQLite:
		dialector = sqlite.Open(cfg.DSN)
	case sourceMySQL:
		dialector = mysql.Open(cfg.DSN)
	case sourcePostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported source kind '%s'", cfg.Kind)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Kind, err)
	}

	return db, nil
}

// seedUsers creates the users table and fills it with n users when it is
// empty.
func seedUsers(db *gorm.DB, n int) error {
	if err := db.AutoMigrate(&user{}); err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}

	var count int64
	if err := db.Model(&user{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 || n == 0 {
		return nil
	}

	users := lo.Times(n, func(i int) user {
		return user{ID: uint(i + 1), Name: fmt.Sprintf("User %d", i+1)}
	})
	if err := db.CreateInBatches(users, _seedBatchSize).Error; err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	return nil
}
