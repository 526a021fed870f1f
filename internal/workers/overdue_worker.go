package workers

import (
	"context"
	"time"

	"stitchhub_backend/internal/logger"
	"stitchhub_backend/internal/services"
)

// OverdueWorker периодически блокирует портал у рассрочек, просрочивших
// очередной платеж дольше грейс-периода. Вся работа — одна идемпотентная
// UPDATE, поэтому частота прогонов и дубли прогонов безопасны.
type OverdueWorker struct {
	enrollmentService services.EnrollmentService
	gracePeriod       time.Duration
	interval          time.Duration
}

func NewOverdueWorker(enrollmentService services.EnrollmentService, gracePeriodDays int) *OverdueWorker {
	return &OverdueWorker{
		enrollmentService: enrollmentService,
		gracePeriod:       time.Duration(gracePeriodDays) * 24 * time.Hour,
		interval:          1 * time.Hour,
	}
}

// Start запускает фоновый цикл блокировки просрочек
func (w *OverdueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *OverdueWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("overdue worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(time.Now())
		}
	}
}

// RunOnce выполняет один проход блокировки. Вынесен отдельно, чтобы
// проход можно было дернуть напрямую (и из тестов).
func (w *OverdueWorker) RunOnce(now time.Time) int64 {
	locked, err := w.enrollmentService.LockOverdue(now, w.gracePeriod)
	logger.WorkerLog("overdue", "lock_overdue_enrollments", err)
	if err != nil {
		return 0
	}
	if locked > 0 {
		logger.Info("locked overdue enrollments", "count", locked)
	}
	return locked
}
