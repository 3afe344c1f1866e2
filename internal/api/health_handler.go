package api

import (
	"fmt"
	"net/http"

	"github.com/ignite/membership-api/internal/pkg/httputil"
)

// HealthStatus is the body of GET /api/health.
type HealthStatus struct {
	Status      string      `json:"status"`
	Timestamp   string      `json:"timestamp"`
	Service     string      `json:"service"`
	EmailConfig EmailConfig `json:"emailConfig"`
}

// EmailConfig reports the configured sender and admin addresses.
type EmailConfig struct {
	FromEmail  string `json:"fromEmail"`
	AdminEmail string `json:"adminEmail"`
}

// HealthCheck is a liveness report; it does not contact the mail provider.
//
//	GET /api/health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Service:   h.config.Notify.ServiceName,
		EmailConfig: EmailConfig{
			FromEmail:  h.config.Mail.FromEmail,
			AdminEmail: h.config.Mail.AdminEmail,
		},
	})
}

// SendTestEmail sends the diagnostic message to the admin address.
//
//	POST /api/test-email
func (h *Handlers) SendTestEmail(w http.ResponseWriter, r *http.Request) {
	if _, err := h.dispatcher.SendTestEmail(r.Context()); err != nil {
		httputil.InternalError(w, err, "Failed to send test email")
		return
	}
	httputil.OK(w, fmt.Sprintf("Test email sent to %s", h.dispatcher.AdminEmail()), nil)
}
