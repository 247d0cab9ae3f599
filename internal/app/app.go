package app

import (
	"context"
	"flag"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"shrike/internal/app/server"
	"shrike/internal/blocklist"
	"shrike/internal/config"
	"shrike/internal/geo"
	"shrike/internal/sources"
	"shrike/internal/support"
	"shrike/internal/watch"
)

const defaultAPIPort = 7474

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	log.SetLevel(log.DebugLevel)

	portFlag := flag.Int("port", defaultAPIPort, "Port for the API server")
	productionFlag := flag.Bool("production", false, "Run in production mode")
	flag.Parse()

	config.SetProductionMode(*productionFlag)
	config.ReadSettings()

	port := resolvePort("SHRIKE_PORT", *portFlag)

	if support.RedisConfigured() {
		redisClient, err := support.GetRedisClient()
		if err != nil {
			log.Warn("Redis unavailable, running standalone", "error", err)
		} else {
			config.EnableRedisSynchronization(context.Background(), redisClient)
			defer func() {
				if err := support.CloseRedisClient(); err != nil {
					log.Warn("error closing redis client", "error", err)
				}
			}()
		}
	}

	cfg := config.GetConfig()

	if err := geo.Initialize(cfg.GeoIP.DatabasePath); err != nil {
		log.Warn("Geo database unavailable", "path", cfg.GeoIP.DatabasePath, "error", err)
	}
	defer geo.Close()

	ctx := context.Background()
	blocklist.StartManager(ctx)

	if cfg.Filter.Path != "" {
		blocklist.Reload(cfg.Filter.Path)

		if cfg.Filter.AutoReload {
			if err := watch.StartFileWatcher(ctx, cfg.Filter.Path); err != nil {
				log.Warn("Filter file watcher unavailable", "path", cfg.Filter.Path, "error", err)
			}
		}
	}

	go sources.StartRefreshRoutine(ctx)

	return server.OpenRoutes(port)
}

func resolvePort(envKey string, fallback int) int {
	if port := readPort(envKey); port != 0 {
		return port
	}
	return fallback
}

func readPort(envKey string) int {
	raw := os.Getenv(envKey)
	if raw == "" {
		return 0
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port == 0 {
		log.Warn("invalid port override", "env", envKey, "value", raw)
		return 0
	}
	return port
}
