package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/internal/metrics"
	"github.com/Dhoini/Billing-service/internal/repository"
	"github.com/Dhoini/Billing-service/internal/services"
	"github.com/Dhoini/Billing-service/pkg/logger"
)

// RenewalTask периодически продлевает активные подписки с истекшим
// расчетным периодом. Внутри процесса одновременно работает не больше
// одного цикла: если предыдущий еще не закончился, очередной тик
// пропускается.
type RenewalTask struct {
	subRepo       repository.SubscriptionRepository
	payments      *services.PaymentService
	subscriptions *services.SubscriptionService
	interval      time.Duration
	gracePeriod   time.Duration
	metrics       metrics.RenewalMetrics // Может быть nil
	log           *logger.Logger
	mu            sync.Mutex
}

// NewRenewalTask создает новую задачу продления подписок. subRepo должен
// читать из основного хранилища, не из кеша: повторная проверка перед
// списанием обязана видеть актуальное состояние подписки.
func NewRenewalTask(
	subRepo repository.SubscriptionRepository,
	payments *services.PaymentService,
	subscriptions *services.SubscriptionService,
	interval time.Duration,
	gracePeriod time.Duration,
	renewalMetrics metrics.RenewalMetrics,
	log *logger.Logger,
) *RenewalTask {
	return &RenewalTask{
		subRepo:       subRepo,
		payments:      payments,
		subscriptions: subscriptions,
		interval:      interval,
		gracePeriod:   gracePeriod,
		metrics:       renewalMetrics,
		log:           log,
	}
}

// Start запускает периодические циклы продления. Блокирует вызывающую
// горутину до отмены контекста.
func (t *RenewalTask) Start(ctx context.Context) {
	t.log.Infow("Renewal task started", "interval", t.interval, "gracePeriod", t.gracePeriod)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.log.Infow("Renewal task stopped")
			return
		case <-ticker.C:
			if !t.mu.TryLock() {
				t.log.Warnw("Previous renewal cycle still running, skipping tick")
				if t.metrics != nil {
					t.metrics.IncCycleSkipped()
				}
				continue
			}
			t.runGuarded(ctx)
			t.mu.Unlock()
		}
	}
}

func (t *RenewalTask) runGuarded(ctx context.Context) {
	if err := t.RunCycle(ctx); err != nil {
		t.log.Errorw("Renewal cycle failed", "error", err)
	}
}

// RunCycle выполняет один цикл продления: выбирает активные подписки с
// истекшим периодом, списывает каждую и переводит в следующий статус.
// Ошибка одной подписки не прерывает обработку остальных, ошибка выборки
// прерывает весь цикл.
func (t *RenewalTask) RunCycle(ctx context.Context) error {
	start := time.Now()

	due, err := t.subRepo.GetDue(ctx, start)
	if err != nil {
		return fmt.Errorf("failed to select due subscriptions: %w", err)
	}

	t.log.Infow("Renewal cycle started", "due", len(due))

	renewed, expired, suspended, failed := 0, 0, 0, 0
	for _, subscription := range due {
		// Между выборкой и обработкой подписку могли продлить или отменить
		current, err := t.subRepo.GetByID(ctx, subscription.ID)
		if err != nil {
			t.log.Errorw("Failed to re-read subscription, skipping", "error", err, "subscriptionID", subscription.ID)
			failed++
			continue
		}
		if current.Status != domain.SubscriptionStatusActive ||
			current.CurrentPeriodEnd == nil ||
			current.CurrentPeriodEnd.After(start) {
			t.log.Debugw("Subscription no longer due, skipping", "subscriptionID", current.ID, "status", current.Status)
			continue
		}

		outcome, err := t.payments.ChargeAndTransition(ctx, current)
		if err != nil {
			t.log.Errorw("Failed to renew subscription", "error", err, "subscriptionID", current.ID)
			failed++
			continue
		}

		switch outcome {
		case services.OutcomeRenewed:
			renewed++
			if t.metrics != nil {
				t.metrics.IncRenewed()
			}
		case services.OutcomeExpired:
			expired++
			if t.metrics != nil {
				t.metrics.IncExpired()
			}
		case services.OutcomeSuspended:
			suspended++
			if t.metrics != nil {
				t.metrics.IncSuspended()
			}
		}
	}

	// Истекшие подписки, не оплаченные за льготный период, приостанавливаем
	cutoff := start.Add(-t.gracePeriod)
	lapsed, err := t.subscriptions.SuspendLapsed(ctx, cutoff)
	if err != nil {
		t.log.Errorw("Failed to suspend lapsed subscriptions", "error", err)
	}

	duration := time.Since(start)
	if t.metrics != nil {
		t.metrics.IncCycle()
		t.metrics.ObserveCycleDuration(duration)
	}

	t.log.Infow("Renewal cycle finished",
		"renewed", renewed,
		"expired", expired,
		"suspended", suspended,
		"lapsedSuspended", lapsed,
		"failed", failed,
		"durationMs", duration.Milliseconds())

	return nil
}
