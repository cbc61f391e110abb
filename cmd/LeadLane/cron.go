package main

import (
	"context"
	"time"

	"LeadLane/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// StartRecoverySweepCron starts the periodic recovery sweep. The sweep reads
// every circuit once a minute so that open circuits of idle services still
// promote to half-open after their recovery timeout, and reconciles pause
// flags that expired or were orphaned by a crash.
func StartRecoverySweepCron(breaker *biz.CircuitBreakerUsecase, logger log.Logger) *cron.Cron {
	helper := log.NewHelper(logger)

	c := cron.New(cron.WithSeconds())

	// Every minute at second 0.
	_, err := c.AddFunc("0 * * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		breaker.Sweep(ctx)
	})

	if err != nil {
		helper.Errorw("failed to register recovery sweep cron job", "error", err)
		return nil
	}

	c.Start()
	helper.Info("recovery sweep cron job started: runs every minute")

	return c
}
