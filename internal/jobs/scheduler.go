package jobs

import (
	"fmt"
	"log"

	"MarginSight/internal/config"
	"MarginSight/internal/logger"
	"MarginSight/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
)

// CronService owns the scheduled maintenance jobs. The only job today
// is the stale-batch reaper: analysis runs have a bounded wall-clock
// budget, and anything still in processing past it is a crashed or
// stuck run that must be failed so the batch can be re-triggered.
type CronService struct {
	config map[string]interface{}
	db     *pgxpool.Pool
	cron   *cron.Cron
}

func NewCronService(cfg map[string]interface{}, db *pgxpool.Pool) serviceiface.Service {
	return &CronService{
		config: cfg,
		db:     db,
	}
}

func (s *CronService) Name() string {
	return "jobs"
}

func (s *CronService) Start() error {
	schedule := config.DefaultReaperSchedule
	timezone := config.DefaultTimeZone
	if s.config != nil {
		if v, ok := s.config["reaper_schedule"].(string); ok && v != "" {
			schedule = v
		}
		if v, ok := s.config["timezone"].(string); ok && v != "" {
			timezone = v
		}
	}

	c, err := startStaleBatchReaper(s.db, schedule, timezone)
	if err != nil {
		return fmt.Errorf("failed to start stale batch reaper: %w", err)
	}
	s.cron = c

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("Jobs service started with stale batch reaper")
	}
	log.Println("Jobs service started, stale batch reaper scheduled:", schedule)
	return nil
}

func (s *CronService) Stop() error {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	return nil
}
