// Package scheduler runs recurring maintenance jobs on cron schedules and
// exposes their state for the tasks API.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

var (
	// ErrTaskNotFound is returned for an unknown task ID.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskRunning is returned when a manual trigger races a live run.
	ErrTaskRunning = errors.New("task is already running")
)

// TaskFunc is the unit of work a task executes.
type TaskFunc func(ctx context.Context) error

// TaskConfig describes a task at registration time.
type TaskConfig struct {
	ID          string
	Name        string
	Description string
	Cron        string // standard five-field cron expression
	Func        TaskFunc
	RunOnStart  bool
}

// TaskInfo is the externally visible snapshot of a task, serialized by the
// tasks endpoints.
type TaskInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Cron        string     `json:"cron"`
	LastRun     *time.Time `json:"lastRun,omitempty"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	Running     bool       `json:"running"`
}

type taskEntry struct {
	config  TaskConfig
	job     gocron.Job
	lastRun *time.Time
	lastErr string
	running bool
}

// Scheduler owns the registered tasks and the gocron instance driving them.
type Scheduler struct {
	gocron gocron.Scheduler
	logger zerolog.Logger
	tasks  map[string]*taskEntry
	mu     sync.RWMutex
}

// New creates an idle scheduler. Nothing runs until Start.
func New(logger zerolog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create gocron scheduler: %w", err)
	}
	return &Scheduler{
		gocron: gs,
		logger: logger.With().Str("component", "scheduler").Logger(),
		tasks:  make(map[string]*taskEntry),
	}, nil
}

// RegisterTask adds a task under a unique ID. The cron expression is
// validated here, before the scheduler starts.
func (s *Scheduler) RegisterTask(config TaskConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[config.ID]; exists {
		return fmt.Errorf("task %q already registered", config.ID)
	}

	job, err := s.gocron.NewJob(
		gocron.CronJob(config.Cron, false),
		gocron.NewTask(func() { s.executeTask(config.ID) }),
		gocron.WithName(config.Name),
		gocron.WithTags(config.ID),
	)
	if err != nil {
		return fmt.Errorf("create job for task %q: %w", config.ID, err)
	}

	s.tasks[config.ID] = &taskEntry{config: config, job: job}

	s.logger.Info().
		Str("id", config.ID).
		Str("cron", config.Cron).
		Bool("runOnStart", config.RunOnStart).
		Msg("Task registered")
	return nil
}

// executeTask runs one task to completion and records its outcome.
func (s *Scheduler) executeTask(taskID string) {
	s.mu.Lock()
	entry, exists := s.tasks[taskID]
	if !exists || entry.running {
		s.mu.Unlock()
		return
	}
	entry.running = true
	s.mu.Unlock()

	started := time.Now()
	s.logger.Info().Str("id", taskID).Msg("Task starting")

	err := entry.config.Func(context.Background())

	s.mu.Lock()
	entry.running = false
	entry.lastRun = &started
	entry.lastErr = ""
	if err != nil {
		entry.lastErr = err.Error()
	}
	s.mu.Unlock()

	elapsed := time.Since(started)
	if err != nil {
		s.logger.Error().Err(err).Str("id", taskID).Dur("duration", elapsed).Msg("Task failed")
		return
	}
	s.logger.Info().Str("id", taskID).Dur("duration", elapsed).Msg("Task completed")
}

// Start begins cron scheduling and kicks off RunOnStart tasks in the
// background.
func (s *Scheduler) Start() error {
	s.logger.Info().Msg("Starting scheduler")
	s.gocron.Start()

	s.mu.RLock()
	var startup []string
	for id, entry := range s.tasks {
		if entry.config.RunOnStart {
			startup = append(startup, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range startup {
		go s.executeTask(id)
	}
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() error {
	s.logger.Info().Msg("Stopping scheduler")
	return s.gocron.Shutdown()
}

// RunNow triggers a task outside its schedule. A task that is already
// running is not started twice.
func (s *Scheduler) RunNow(taskID string) error {
	s.mu.RLock()
	entry, exists := s.tasks[taskID]
	running := exists && entry.running
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if running {
		return fmt.Errorf("%w: %s", ErrTaskRunning, taskID)
	}

	go s.executeTask(taskID)
	return nil
}

// ListTasks returns a snapshot of every registered task, ordered by ID.
func (s *Scheduler) ListTasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]TaskInfo, 0, len(s.tasks))
	for _, entry := range s.tasks {
		infos = append(infos, s.infoLocked(entry))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// GetTask returns the snapshot of one task.
func (s *Scheduler) GetTask(taskID string) (*TaskInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	info := s.infoLocked(entry)
	return &info, nil
}

// infoLocked builds the snapshot for one entry. Caller holds at least a read
// lock.
func (s *Scheduler) infoLocked(entry *taskEntry) TaskInfo {
	info := TaskInfo{
		ID:          entry.config.ID,
		Name:        entry.config.Name,
		Description: entry.config.Description,
		Cron:        entry.config.Cron,
		LastRun:     entry.lastRun,
		LastError:   entry.lastErr,
		Running:     entry.running,
	}
	if next, err := entry.job.NextRun(); err == nil {
		info.NextRun = &next
	}
	return info
}
