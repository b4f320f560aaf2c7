package services

import (
	"github.com/sirupsen/logrus"

	"github.com/voxrelay/voxrelay-backend/internal/config"
	"github.com/voxrelay/voxrelay-backend/internal/notify"
	"github.com/voxrelay/voxrelay-backend/internal/pipeline"
	"github.com/voxrelay/voxrelay-backend/internal/realtime"
	"github.com/voxrelay/voxrelay-backend/internal/session"
	"github.com/voxrelay/voxrelay-backend/internal/summary"
	"github.com/voxrelay/voxrelay-backend/internal/telephony"
)

// Services holds all service instances
type Services struct {
	Config     *config.Config
	Logger     *logrus.Logger
	Store      session.Store
	Telephony  telephony.Dialer
	Realtime   realtime.Dialer
	Completion *pipeline.Completion
}

// NewServices creates all service instances
func NewServices(cfg *config.Config, logger *logrus.Logger) *Services {
	store := session.NewMemoryStore()
	summarizer := summary.NewService(cfg.OpenAI.APIKey, cfg.OpenAI.SummaryModel)
	dispatcher := notify.NewSendGridDispatcher(cfg.SendGrid, logger)

	return &Services{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Telephony:  telephony.NewTwilioDialer(cfg.Twilio, cfg.Server.PublicDomain, logger),
		Realtime:   realtime.NewClientDialer(cfg.OpenAI),
		Completion: pipeline.NewCompletion(store, summarizer, dispatcher, logger),
	}
}
