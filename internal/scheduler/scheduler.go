// Package scheduler запускает периодические прогоны ежедневной отметки
// и выполнения заданий для сессий с включённым автоматическим режимом.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/questbot-system/internal/credential"
	"github.com/mmeshcher/questbot-system/internal/model"
	"github.com/mmeshcher/questbot-system/internal/repository"
)

// Runner выполняет операции платформы для переданных учётных данных.
type Runner interface {
	CompleteTasks(ctx context.Context, cred model.Credential) (string, error)
	DailyCheckin(ctx context.Context, cred model.Credential) (string, error)
}

// Scheduler обходит сохранённые сессии по таймеру.
type Scheduler struct {
	runner          Runner
	store           repository.SessionStore
	checkinInterval time.Duration
	tasksInterval   time.Duration
	logger          *zap.Logger
}

func New(runner Runner, store repository.SessionStore, checkinInterval, tasksInterval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:          runner,
		store:           store,
		checkinInterval: checkinInterval,
		tasksInterval:   tasksInterval,
		logger:          logger,
	}
}

// Start запускает фоновые циклы и блокируется до отмены контекста.
func (s *Scheduler) Start(ctx context.Context) {
	checkin := time.NewTicker(s.checkinInterval)
	defer checkin.Stop()

	tasks := time.NewTicker(s.tasksInterval)
	defer tasks.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-checkin.C:
			s.runAll(ctx, "daily checkin", s.runner.DailyCheckin)
		case <-tasks.C:
			s.runAll(ctx, "complete tasks", s.runner.CompleteTasks)
		}
	}
}

func (s *Scheduler) runAll(ctx context.Context, op string, run func(context.Context, model.Credential) (string, error)) {
	records, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("failed to list sessions", zap.String("op", op), zap.Error(err))
		return
	}

	for _, rec := range records {
		if !rec.AutoMode {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		cred, err := credential.Resolve(rec.Cookie, rec.PrivateKey)
		if err != nil || cred.Kind == model.CredentialNone {
			s.logger.Warn("session has no usable credential",
				zap.String("session", rec.ID), zap.String("op", op))
			continue
		}

		report, err := run(ctx, cred)
		if err != nil {
			s.logger.Error("scheduled run failed",
				zap.String("session", rec.ID), zap.String("op", op), zap.Error(err))
			continue
		}

		s.logger.Info("scheduled run finished",
			zap.String("session", rec.ID), zap.String("op", op), zap.String("report", report))
	}
}
