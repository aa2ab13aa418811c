package workflow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stocklot/marketplace_backend/models"
	"gorm.io/gorm"
)

// ExpirySweeper transitions overdue ACTIVE/NEGOTIATING offers to EXPIRED on
// a fixed interval. ExpireStaleOffers is a single idempotent UPDATE, so
// concurrent sweepers on multiple instances are harmless.
type ExpirySweeper struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	PollInterval time.Duration
}

func NewExpirySweeper(db *gorm.DB, logger *logrus.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		DB:           db,
		Logger:       logger,
		PollInterval: 5 * time.Minute,
	}
}

func (s *ExpirySweeper) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.PollInterval):
		}
	}
}

func (s *ExpirySweeper) sweepOnce(ctx context.Context) {
	expired, err := models.ExpireStaleOffers(ctx, time.Now().UTC())
	if err != nil {
		s.Logger.WithFields(logrus.Fields{"field": "expirySweeper"}).
			Error("expiry sweep failed: " + err.Error())
		return
	}
	if expired > 0 {
		s.Logger.WithFields(logrus.Fields{
			"field":   "expirySweeper",
			"expired": expired,
		}).Info("expired stale offers")
	}
}
