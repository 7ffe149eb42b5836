// Package notifier delivers persisted alerts: every alert is broadcast to
// the dashboard WebSocket hub, and critical alerts are additionally sent to
// the configured care-team Telegram chat.
package notifier

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
	"vitals-service/internal/config"
	"vitals-service/internal/logging"
	"vitals-service/internal/models"
	"vitals-service/internal/ws"
)

// Service processes alerts on a bounded queue with a worker pool.
type Service struct {
	cfg     config.Config
	logger  *logging.Logger
	hub     *ws.Hub
	alerts  chan models.Alert
	ctx     context.Context
	cancel  context.CancelFunc
	wg      *sync.WaitGroup
	limiter *rate.Limiter
}

// New constructs a notifier Service. hub may be nil.
func New(cfg config.Config, hub *ws.Hub, logger *logging.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	rps := cfg.Notifier.TelegramRateLimit
	return &Service{
		cfg:     cfg,
		logger:  logger,
		hub:     hub,
		alerts:  make(chan models.Alert, cfg.Notifier.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		limiter: rate.NewLimiter(rate.Limit(float64(rps)), rps),
	}
}

// Start launches the worker pool.
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	for i := 0; i < s.cfg.Notifier.MaxWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop cancels the workers.
func (s *Service) Stop() {
	s.cancel()
}

// Publish enqueues an alert for delivery. It never blocks ingestion: when
// the queue is full the alert is dropped from delivery (it is already
// persisted) and the drop is logged.
func (s *Service) Publish(alert models.Alert) {
	select {
	case s.alerts <- alert:
	default:
		s.logger.Errorf("Notifier queue full, dropping delivery of alert %d (%s)", alert.ID, alert.AlertType)
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Notifier worker %d stopped", id)
			return
		case alert := <-s.alerts:
			s.handleAlert(alert)
		}
	}
}

func (s *Service) handleAlert(alert models.Alert) {
	if s.hub != nil {
		s.hub.Broadcast(alert)
	}

	if alert.Severity != models.SeverityCritical {
		return
	}
	if s.cfg.Notifier.TelegramBotToken == "" || s.cfg.Notifier.TelegramChatID == 0 {
		s.logger.Debugf("Telegram not configured, skipping critical alert %d", alert.ID)
		return
	}

	if err := s.sendTelegram(s.ctx, alert); err != nil {
		s.logger.Errorf("Telegram dispatch for alert %d failed: %v", alert.ID, err)
		return
	}
	s.logger.Infof("Critical alert %d (%s) dispatched via Telegram", alert.ID, alert.AlertType)
}
