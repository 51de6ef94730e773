package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/denismitr/portfoliocad/internal/idb"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const appDir = "portfoliocad"

type Config struct {
	// DataDir holds the image database. Empty falls back to the user
	// config directory, and stays empty when there is none.
	DataDir string `env:"PORTFOLIOCAD_DATA_DIR"`
	Env     string `env:"PORTFOLIOCAD_ENV" envDefault:"production"`
	Address string `env:"PORTFOLIOCAD_ADDRESS" envDefault:":8080"`

	LogLevel  string `env:"PORTFOLIOCAD_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PORTFOLIOCAD_LOG_FORMAT" envDefault:"console"`

	// SaveDataPath is where the development save endpoint writes to.
	SaveDataPath string `env:"PORTFOLIOCAD_SAVE_DATA_PATH" envDefault:"data/portfolio.json"`
	BasePath     string `env:"PORTFOLIOCAD_BASE_PATH" envDefault:"/"`

	Persistence       idb.PersistenceStrategy `env:"PORTFOLIOCAD_PERSISTENCE" envDefault:"sync"`
	FlushInterval     time.Duration           `env:"PORTFOLIOCAD_FLUSH_INTERVAL" envDefault:"1s"`
	CacheBytes        uint64                  `env:"PORTFOLIOCAD_CACHE_BYTES"`
	DisableCache      bool                    `env:"PORTFOLIOCAD_DISABLE_CACHE"`
	DisableAutoVacuum bool                    `env:"PORTFOLIOCAD_DISABLE_AUTO_VACUUM"`
	VacuumInterval    time.Duration           `env:"PORTFOLIOCAD_VACUUM_INTERVAL" envDefault:"10m"`
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "could not parse environment")
	}

	switch cfg.Persistence {
	case idb.Sync, idb.Async:
	default:
		return Config{}, errors.Errorf("unknown persistence strategy %q", cfg.Persistence)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}

	return cfg, nil
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return filepath.Join(dir, appDir)
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c Config) DatabaseConfig() idb.Config {
	return idb.Config{
		Dir:                       c.DataDir,
		PersistenceStrategy:       c.Persistence,
		AsyncPersistenceIntervals: c.FlushInterval,
		CacheBytes:                c.CacheBytes,
		DisableCache:              c.DisableCache,
		DisableAutoVacuum:         c.DisableAutoVacuum,
		AutoVacuumIntervals:       c.VacuumInterval,
	}
}
