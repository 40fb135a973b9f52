package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/solar-yield-forecast/internal/solar"
)

// Refresher is the part of solar.Service the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context, mode solar.ReloadMode) (solar.RefreshResult, error)
}

// Scheduler refreshes the Solcast snapshot once a day so requests during the
// day are served from cache.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Refresher
	at        string
	timeout   time.Duration
}

// New creates a Scheduler that runs at the local HH:MM given by at.
func New(service Refresher, at string, timeout time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.Local)
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Scheduler{
		scheduler: s,
		service:   service,
		at:        at,
		timeout:   timeout,
	}
}

// Start schedules the daily job, runs it once immediately in the background
// and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Day().At(s.at).Do(s.run)
	if err != nil {
		return err
	}

	go s.run()
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run() {
	log.Println("scheduler: running solcast refresh job")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.service.Refresh(ctx, solar.ReloadIfStale)
	if err != nil {
		log.Printf("scheduler: refresh %s failed: %v", res.RunID, err)
		return
	}
	log.Printf("scheduler: refresh %s completed with data for %s", res.RunID, res.Date)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
