package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FACorreiaa/loci-pubmap/internal/domain/geocode"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/idstore"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/mapview"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/poi"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/statistics"
	"github.com/FACorreiaa/loci-pubmap/pkg/config"
	"github.com/FACorreiaa/loci-pubmap/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Redis  *redis.Client
	Logger *slog.Logger

	// Repositories
	POIRepo        poi.Repository
	StatisticsRepo statistics.Repository
	References     *statistics.References

	// Services
	StatisticsService statistics.Service
	Geocoder          geocode.Geocoder
	Sessions          *mapview.Manager

	// Handlers
	MapHandler *mapview.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	if err := deps.initRedis(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}
	if err := deps.initRepositories(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}
	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase connects the pool and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRedis connects the id list store. Without an address id lists stay in memory.
func (d *Dependencies) initRedis() error {
	client := idstore.OpenRedis(d.Config.Redis.Addr, d.Config.Redis.Password, d.Config.Redis.DB)
	if client == nil {
		d.Logger.Warn("REDIS_ADDR not set; visited and favorite lists are kept in memory")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	d.Redis = client
	d.Logger.Info("redis connected", slog.String("addr", d.Config.Redis.Addr))
	return nil
}

func (d *Dependencies) initRepositories() error {
	refs, err := statistics.DefaultReferences()
	if err != nil {
		return err
	}
	d.References = refs
	d.POIRepo = poi.NewRepository(d.DB.Pool, d.Logger)
	d.StatisticsRepo = statistics.NewRepository(d.Logger, d.DB.Pool, refs)

	d.Logger.Info("repositories initialized")
	return nil
}

func (d *Dependencies) initServices() error {
	opts, err := mapview.OptionsFromConfig(d.Config.Map)
	if err != nil {
		return err
	}

	d.StatisticsService = statistics.NewService(d.StatisticsRepo, d.POIRepo, d.References, d.Logger)
	d.Geocoder = geocode.NewNominatimClient(d.Config.Geocoding, d.Logger)
	d.Sessions = mapview.NewManager(mapview.ManagerDeps{
		Repo:       d.POIRepo,
		Statistics: d.StatisticsService,
		Refs:       d.References,
		Geocoder:   d.Geocoder,
		Stores:     d.storeFactory(),
		Logger:     d.Logger,
	}, opts, d.Config.Server.SessionTTL)

	d.Logger.Info("services initialized")
	return nil
}

func (d *Dependencies) initHandlers() {
	d.MapHandler = mapview.NewHandler(d.Sessions, d.StatisticsService, d.Logger)
	d.Logger.Info("handlers initialized")
}

// storeFactory keys id lists by user. Anonymous sessions share the "anonymous" lists.
func (d *Dependencies) storeFactory() mapview.StoreFactory {
	if d.Redis != nil {
		return func(userID string) idstore.Store {
			if userID == "" {
				userID = "anonymous"
			}
			return idstore.NewRedisStore(d.Redis, "pubmap:"+userID)
		}
	}
	var mu sync.Mutex
	stores := make(map[string]*idstore.MemoryStore)
	return func(userID string) idstore.Store {
		mu.Lock()
		defer mu.Unlock()
		s, ok := stores[userID]
		if !ok {
			s = idstore.NewMemoryStore()
			stores[userID] = s
		}
		return s
	}
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Sessions != nil {
		d.Sessions.Shutdown()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Warn("failed to close redis", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
