package main

import (
	"time"

	"github.com/akinalp/runeshop/config"
	"github.com/akinalp/runeshop/docstore"
	"github.com/akinalp/runeshop/pkg/email"
	"github.com/akinalp/runeshop/pkg/logger"
	"github.com/akinalp/runeshop/pkg/ratelimit"
	"github.com/akinalp/runeshop/services"
)

// Services holds the service instances.
type Services struct {
	Auth      services.AuthService
	Chat      *services.ChatService
	ChatAdmin services.ChatAdminService
}

// RateLimiters holds the limiters so main can stop their sweeps.
type RateLimiters struct {
	Login   *ratelimit.LoginRateLimiter
	Message *ratelimit.MessageRateLimiter
}

// Close stops every limiter sweep.
func (l *RateLimiters) Close() {
	l.Login.Close()
	l.Message.Close()
}

func initRateLimiters(cfg *config.Config) *RateLimiters {
	return &RateLimiters{
		// 10 attempts per 15 minutes per IP
		Login:   ratelimit.NewLoginRateLimiter(10, 15*time.Minute),
		Message: ratelimit.NewMessageRateLimiter(cfg.Chat.MessageMax, cfg.Chat.MessageWindow, cfg.Chat.MessageCooldown),
	}
}

func initServices(cfg *config.Config, repos *Repositories, store docstore.Store, limiters *RateLimiters) *Services {
	var notifier email.ChatNotifier
	if cfg.Email.ResendAPIKey != "" && cfg.Email.AdminNotify != "" {
		notifier = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.From, cfg.Email.AdminNotify)
	} else {
		log := logger.Module("main")
		log.Info().Msg("RESEND_API_KEY or ADMIN_NOTIFY_EMAIL not set, new chat emails disabled")
	}

	return &Services{
		Auth: services.NewAuthService(
			repos.User,
			repos.Session,
			cfg.JWT.Secret,
			cfg.JWT.AccessTokenExpiry,
			cfg.JWT.RefreshTokenExpiry,
			cfg.JWT.AdminEmails,
		),
		Chat:      services.NewChatService(store, notifier, limiters.Message, cfg.Chat.GuestEmail),
		ChatAdmin: services.NewChatAdminService(store),
	}
}
