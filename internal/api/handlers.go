package api

import (
	"time"

	"github.com/ignite/membership-api/internal/config"
	"github.com/ignite/membership-api/internal/membership"
	"github.com/ignite/membership-api/internal/notify"
	"github.com/ignite/membership-api/internal/upload"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	parser     *upload.Parser
	validator  *membership.Validator
	dispatcher *notify.Dispatcher
	config     *config.Config
	now        func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(cfg *config.Config, parser *upload.Parser, validator *membership.Validator, dispatcher *notify.Dispatcher) *Handlers {
	return &Handlers{
		parser:     parser,
		validator:  validator,
		dispatcher: dispatcher,
		config:     cfg,
		now:        time.Now,
	}
}

// NewHandlersFromConfig builds the parser and validator from cfg.
func NewHandlersFromConfig(cfg *config.Config, dispatcher *notify.Dispatcher) *Handlers {
	return NewHandlers(
		cfg,
		upload.NewParser(cfg.Upload),
		membership.NewValidator(cfg.Notify.RequireGiftCardPIN),
		dispatcher,
	)
}
