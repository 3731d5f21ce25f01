package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ona-asso/ona-api/internal/models"
	"github.com/ona-asso/ona-api/pkg/jobs"
)

// Reminder outcomes reported in metrics.
const (
	ReminderOutcomeSent    = "sent"
	ReminderOutcomeFailed  = "failed"
	ReminderOutcomeDropped = "dropped"
)

// ReminderJobType tags reminder jobs on the queue.
const ReminderJobType = "appointment_reminder"

// maxReminderLead is the widest reminder_hours_before a calendar accepts.
const maxReminderLead = 168 * time.Hour

type reminderRepository interface {
	ListReminderCandidates(ctx context.Context, from, to models.Date) ([]models.ReminderCandidate, error)
	MarkReminderSent(ctx context.Context, id string, sentAt time.Time) error
}

type reminderQueue interface {
	Enqueue(job jobs.Job) error
}

// Notifier delivers a reminder to the volunteer of an appointment.
type Notifier interface {
	Notify(ctx context.Context, reminder models.ReminderCandidate) error
}

// LogNotifier writes reminders to the structured log.
type LogNotifier struct {
	logger   *zap.Logger
	location *time.Location
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger, location *time.Location) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &LogNotifier{logger: logger, location: location}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, reminder models.ReminderCandidate) error {
	n.logger.Info("appointment reminder",
		zap.String("appointment_id", reminder.ID),
		zap.String("to", reminder.VolunteerEmail),
		zap.String("volunteer", models.Volunteer{FirstName: reminder.VolunteerFirstName, LastName: reminder.VolunteerLastName}.FullName()),
		zap.String("title", reminder.Title),
		zap.Time("starts_at", reminder.StartsAt(n.location)),
	)
	return nil
}

// ReminderService finds appointments due for a reminder and queues them.
type ReminderService struct {
	repo    reminderRepository
	queue   reminderQueue
	metrics *MetricsService
	config  SchedulingConfig
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewReminderService constructs a ReminderService.
func NewReminderService(repo reminderRepository, queue reminderQueue, metrics *MetricsService, config SchedulingConfig, logger *zap.Logger) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderService{
		repo:    repo,
		queue:   queue,
		metrics: metrics,
		config:  config.withDefaults(),
		logger:  logger,
		pending: make(map[string]struct{}),
	}
}

// SetQueue attaches the queue reminders are pushed to.
func (s *ReminderService) SetQueue(queue reminderQueue) {
	s.queue = queue
}

// Scan enqueues every reminder whose window is open and returns how many were queued.
func (s *ReminderService) Scan(ctx context.Context) (int, error) {
	if s.queue == nil {
		return 0, fmt.Errorf("reminder queue not configured")
	}
	now := s.config.now()
	candidates, err := s.repo.ListReminderCandidates(ctx, models.DateOf(now), models.DateOf(now.Add(maxReminderLead)))
	if err != nil {
		return 0, fmt.Errorf("scan reminders: %w", err)
	}

	queued := 0
	for _, candidate := range candidates {
		if !candidate.Due(now, s.config.Location) {
			continue
		}
		if !s.claim(candidate.ID) {
			continue
		}
		if err := s.queue.Enqueue(jobs.Job{ID: candidate.ID, Type: ReminderJobType, Payload: candidate}); err != nil {
			s.release(candidate.ID)
			return queued, fmt.Errorf("enqueue reminder %s: %w", candidate.ID, err)
		}
		queued++
	}
	if queued > 0 {
		s.logger.Info("reminders queued", zap.Int("count", queued))
	}
	return queued, nil
}

// Dropped releases a reminder that exhausted its retries so a later scan can retry it.
func (s *ReminderService) Dropped(job jobs.Job, err error) {
	s.release(job.ID)
	s.metrics.RecordReminder(ReminderOutcomeDropped)
	s.logger.Warn("reminder dropped", zap.String("appointment_id", job.ID), zap.Error(err))
}

func (s *ReminderService) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; ok {
		return false
	}
	s.pending[id] = struct{}{}
	return true
}

func (s *ReminderService) release(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// ReminderWorker delivers queued reminders.
type ReminderWorker struct {
	service  *ReminderService
	notifier Notifier
	logger   *zap.Logger
}

// NewReminderWorker constructs a ReminderWorker.
func NewReminderWorker(service *ReminderService, notifier Notifier, logger *zap.Logger) *ReminderWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderWorker{service: service, notifier: notifier, logger: logger}
}

// Handle processes one reminder job.
func (w *ReminderWorker) Handle(ctx context.Context, job jobs.Job) error {
	reminder, ok := job.Payload.(models.ReminderCandidate)
	if !ok {
		w.service.release(job.ID)
		w.logger.Error("unexpected reminder payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := w.notifier.Notify(ctx, reminder); err != nil {
		w.service.metrics.RecordReminder(ReminderOutcomeFailed)
		return fmt.Errorf("notify: %w", err)
	}
	if err := w.service.repo.MarkReminderSent(ctx, reminder.ID, w.service.config.Now().UTC()); err != nil {
		w.service.metrics.RecordReminder(ReminderOutcomeFailed)
		return err
	}
	w.service.release(job.ID)
	w.service.metrics.RecordReminder(ReminderOutcomeSent)
	return nil
}

// ReminderScheduler runs reminder scans on a cron schedule.
type ReminderScheduler struct {
	cron    *cron.Cron
	service *ReminderService
	logger  *zap.Logger
}

// NewReminderScheduler parses the cron expression and registers the scan.
func NewReminderScheduler(spec string, location *time.Location, service *ReminderService, logger *zap.Logger) (*ReminderScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	scheduler := &ReminderScheduler{
		cron:    cron.New(cron.WithLocation(location)),
		service: service,
		logger:  logger,
	}
	if _, err := scheduler.cron.AddFunc(spec, scheduler.run); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	return scheduler, nil
}

// Start begins running scheduled scans.
func (s *ReminderScheduler) Start() {
	s.cron.Start()
	s.logger.Info("reminder scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop halts the schedule and waits for a running scan, bounded by ctx.
func (s *ReminderScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("reminder scan still running at shutdown")
	}
}

func (s *ReminderScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.service.Scan(ctx); err != nil {
		s.logger.Error("reminder scan failed", zap.Error(err))
	}
}
