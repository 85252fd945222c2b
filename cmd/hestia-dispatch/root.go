package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"hestia.local/dispatch/internal/config"
	"hestia.local/dispatch/internal/db"
	"hestia.local/dispatch/internal/hours"
	"hestia.local/dispatch/internal/session"
	"hestia.local/dispatch/internal/ticket"
	"hestia.local/dispatch/internal/workers"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "hestia-dispatch",
		Short:        "Hotel maintenance and housekeeping ticket dispatch",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
	root.AddCommand(newServeCmd(), newWorkersCmd(), newTicketsCmd())
	return root
}

func loadConfig() (config.Config, error) {
	cfg, err := config.FromYAMLAndEnv()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// stores groups the gorm-backed persistence layers sharing one handle.
type stores struct {
	db        *gorm.DB
	tickets   *ticket.GormStore
	directory *workers.GormDirectory
	sessions  *session.GormStore
	notices   *hours.GormNoticeStore
}

func openStores(cfg config.Config, logger *log.Logger) (*stores, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	gormDB, err := db.OpenGorm(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &stores{db: gormDB}
	if s.tickets, err = ticket.NewGormStore(gormDB); err != nil {
		s.close()
		return nil, fmt.Errorf("init ticket store: %w", err)
	}
	if s.directory, err = workers.NewGormDirectory(gormDB); err != nil {
		s.close()
		return nil, fmt.Errorf("init worker directory: %w", err)
	}
	if s.sessions, err = session.NewGormStore(gormDB, logger); err != nil {
		s.close()
		return nil, fmt.Errorf("init session store: %w", err)
	}
	if s.notices, err = hours.NewGormNoticeStore(gormDB); err != nil {
		s.close()
		return nil, fmt.Errorf("init notice store: %w", err)
	}
	return s, nil
}

func (s *stores) close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func cliLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.New(w, "hestia ", log.Ldate|log.Ltime|log.LUTC)
}
