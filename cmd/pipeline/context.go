package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"

	"github.com/BerylCAtieno/youtube-medallion/internal/config"
	"github.com/BerylCAtieno/youtube-medallion/internal/db"
	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
	"github.com/BerylCAtieno/youtube-medallion/internal/repository"
	"github.com/BerylCAtieno/youtube-medallion/internal/services"
	"github.com/BerylCAtieno/youtube-medallion/internal/utils"
)

type commandContext struct {
	configPath string
	dateFlag   string
	jsonOutput bool
	lockPath   string

	once     sync.Once
	cfg      *config.Config
	service  services.PipelineService
	database *sqlx.DB
	initErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func defaultLockPath() string {
	return filepath.Join(os.TempDir(), "youtube-medallion.lock")
}

// pipeline lazily builds the service so --help never touches config.
func (c *commandContext) pipeline() (services.PipelineService, error) {
	c.once.Do(func() {
		if c.service != nil {
			return
		}

		path := strings.TrimSpace(c.configPath)
		var cfg *config.Config
		if path != "" {
			cfg, c.initErr = config.LoadFrom(path)
		} else {
			cfg, c.initErr = config.Load()
		}
		if c.initErr != nil {
			return
		}
		c.cfg = cfg

		logger := utils.NewLoggerTo(os.Stderr, cfg.LogLevel)

		var runs repository.RunRepository
		if cfg.RunsDBPath != "" {
			c.database, c.initErr = db.Open(cfg.RunsDBPath)
			if c.initErr != nil {
				c.initErr = fmt.Errorf("open run ledger: %w", c.initErr)
				return
			}
			runs = repository.NewRunRepository(c.database)
		}

		c.service, c.initErr = services.NewPipelineService(cfg, runs, logger)
	})
	return c.service, c.initErr
}

// date resolves --date, defaulting to today's partition.
func (c *commandContext) date(svc services.PipelineService) (partition.Date, error) {
	if strings.TrimSpace(c.dateFlag) == "" {
		return svc.Today(), nil
	}
	return partition.ParseDate(c.dateFlag)
}

// withLock runs fn while holding the host-wide pipeline lock.
func (c *commandContext) withLock(fn func() error) error {
	lock := flock.New(c.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another pipeline run holds %s", c.lockPath)
	}
	defer lock.Unlock()

	return fn()
}

func (c *commandContext) close() error {
	if c.database == nil {
		return nil
	}
	err := c.database.Close()
	c.database = nil
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
