package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mbeoliero/beatdm/internal/config"
	"github.com/mbeoliero/beatdm/internal/entity"
	"github.com/mbeoliero/beatdm/pkg/constant"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repositories holds all repositories.
// UserDB is the marketplace user directory; ChatDB holds channels and
// messages and may live on a different server.
type Repositories struct {
	UserDB  *gorm.DB
	ChatDB  *gorm.DB
	Redis   *redis.Client
	User    *UserRepo
	Channel *ChannelRepo
	Message *MessageRepo
}

// NewRepositories creates all repositories
func NewRepositories(cfg *config.Config) (*Repositories, error) {
	userDB, err := openStore(&cfg.UserStore, cfg.Server.Mode)
	if err != nil {
		return nil, fmt.Errorf("open user store: %w", err)
	}

	chatDB, err := openStore(&cfg.ChatStore, cfg.Server.Mode)
	if err != nil {
		return nil, fmt.Errorf("open chat store: %w", err)
	}

	rdb := initRedis(cfg)

	return NewRepositoriesWith(userDB, chatDB, rdb, cfg.Redis.ProfileCacheTTL), nil
}

// NewRepositoriesWith wires repositories over already opened connections.
// rdb may be nil, in which case the profile cache is disabled.
func NewRepositoriesWith(userDB, chatDB *gorm.DB, rdb *redis.Client, profileTTL time.Duration) *Repositories {
	return &Repositories{
		UserDB:  userDB,
		ChatDB:  chatDB,
		Redis:   rdb,
		User:    NewUserRepo(userDB, rdb, profileTTL),
		Channel: NewChannelRepo(chatDB),
		Message: NewMessageRepo(chatDB),
	}
}

// openStore opens a gorm connection for the configured driver
func openStore(cfg *config.StoreConfig, mode string) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if mode == "debug" {
		logLevel = logger.Info
	} else {
		logLevel = logger.Warn
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case constant.DriverMySQL:
		dialector = mysql.Open(cfg.DSN())
	case constant.DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	case constant.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, GormConfig(logger.Default.LogMode(logLevel)))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// GormConfig returns the gorm settings every store is opened with.
// TranslateError surfaces unique violations as gorm.ErrDuplicatedKey.
func GormConfig(l logger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger:                                   l,
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

// initRedis initializes Redis connection
func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// Migrate creates or updates the chat store schema
func (r *Repositories) Migrate(ctx context.Context) error {
	return r.ChatDB.WithContext(ctx).AutoMigrate(&entity.Message{}, &entity.Channel{})
}

// Close closes all connections
func (r *Repositories) Close() error {
	for _, db := range []*gorm.DB{r.ChatDB, r.UserDB} {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Close(); err != nil {
			return err
		}
	}
	if r.Redis != nil {
		return r.Redis.Close()
	}
	return nil
}

// ChatTransaction executes fn in a chat store transaction
func (r *Repositories) ChatTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.ChatDB.WithContext(ctx).Transaction(fn)
}

// CheckConnection checks if both stores and redis are alive
func (r *Repositories) CheckConnection(ctx context.Context) error {
	for name, db := range map[string]*gorm.DB{"user store": r.UserDB, "chat store": r.ChatDB} {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			log.CtxError(ctx, "%s ping failed: %v", name, err)
			return err
		}
	}

	if r.Redis != nil {
		if err := r.Redis.Ping(ctx).Err(); err != nil {
			log.CtxError(ctx, "redis ping failed: %v", err)
			return err
		}
	}

	return nil
}
