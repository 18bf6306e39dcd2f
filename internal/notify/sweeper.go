package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// StartSweeper runs Sweep on the cron schedule until the returned scheduler
// is stopped.
func StartSweeper(svc *Service, cronExpr string, retention time.Duration, logger *zap.SugaredLogger) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)

	_, err := s.Cron(cronExpr).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		deleted, err := svc.Sweep(ctx, retention)
		if err != nil {
			logger.Errorw("failed to sweep notifications", "error", err)
			return
		}
		logger.Infow("notifications swept", "deleted", deleted, "retention", retention)
	})
	if err != nil {
		return nil, fmt.Errorf("error scheduling notification sweep: %w", err)
	}

	s.StartAsync()
	return s, nil
}
