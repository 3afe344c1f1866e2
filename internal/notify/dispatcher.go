package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/membership-api/internal/config"
	"github.com/ignite/membership-api/internal/esp"
	"github.com/ignite/membership-api/internal/membership"
	"github.com/ignite/membership-api/internal/pkg/logger"
)

// ErrCustomerDispatch is returned when the customer confirmation could not
// be rendered or sent. The admin alert is never attempted in that case.
var ErrCustomerDispatch = errors.New("customer confirmation email failed")

// ReferenceHeader carries the dispatch reference on every outgoing message.
const ReferenceHeader = "X-Membership-Reference"

const (
	testEmailSubject = "🧪 Test Email - Admin Notifications"
	testEmailHTML    = "<h2>Test Email</h2><p>If you received this, admin notifications are working correctly!</p>"
)

// Outcome reports which emails were accepted by the mail transport.
type Outcome struct {
	CustomerSent bool
	AdminSent    bool
	Reference    string
}

// Clock returns the current time.
type Clock func() time.Time

// Options configures a Dispatcher.
type Options struct {
	FromName        string
	FromEmail       string
	AdminEmail      string
	PortalURL       string
	MaskGiftCardPIN bool
	Location        *time.Location
	Clock           Clock
}

// OptionsFromConfig derives dispatcher options from the service config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FromName:        cfg.Notify.BrandName,
		FromEmail:       cfg.Mail.FromEmail,
		AdminEmail:      cfg.Mail.AdminEmail,
		PortalURL:       cfg.Notify.PortalURL,
		MaskGiftCardPIN: cfg.Notify.MaskGiftCardPIN,
		Location:        cfg.Notify.Location(),
	}
}

// Dispatcher sends the customer confirmation and the admin alert for a
// validated submission.
type Dispatcher struct {
	sender   esp.Sender
	renderer *Renderer
	opts     Options
}

// NewDispatcher creates a Dispatcher that sends through sender.
func NewDispatcher(sender esp.Sender, opts Options) *Dispatcher {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Dispatcher{
		sender: sender,
		renderer: NewRenderer(NewTemplateService(), RendererOptions{
			BrandName:       opts.FromName,
			PortalURL:       opts.PortalURL,
			MaskGiftCardPIN: opts.MaskGiftCardPIN,
			Location:        opts.Location,
		}),
		opts: opts,
	}
}

// Renderer exposes the dispatcher's renderer for previews.
func (d *Dispatcher) Renderer() *Renderer { return d.renderer }

// Dispatch sends the customer confirmation first. Only when it is accepted
// is the admin alert attempted; an admin failure is logged and reported
// through Outcome.AdminSent without failing the dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, sub *membership.Submission, details membership.PlanDetails) (Outcome, error) {
	now := d.opts.Clock()
	outcome := Outcome{Reference: uuid.NewString()}

	customerHTML, err := d.renderer.Customer(sub, details, now)
	if err != nil {
		return outcome, fmt.Errorf("%w: render: %v", ErrCustomerDispatch, err)
	}
	customer := d.newMessage(sub.Email, CustomerSubject(details), customerHTML, outcome.Reference)
	result, err := d.sender.Send(ctx, customer)
	if err != nil {
		logger.Error("customer confirmation failed",
			"email", sub.Email,
			"transaction_id", sub.TransactionID,
			"reference", outcome.Reference,
			"provider", d.sender.Name(),
			"error", err,
		)
		return outcome, fmt.Errorf("%w: %v", ErrCustomerDispatch, err)
	}
	outcome.CustomerSent = true
	logger.Info("customer confirmation sent",
		"email", sub.Email,
		"plan", details.DisplayName,
		"message_id", result.MessageID,
		"reference", outcome.Reference,
	)

	outcome.AdminSent = d.sendAdmin(ctx, sub, details, outcome.Reference, now)
	return outcome, nil
}

func (d *Dispatcher) sendAdmin(ctx context.Context, sub *membership.Submission, details membership.PlanDetails, reference string, now time.Time) bool {
	adminHTML, err := d.renderer.Admin(sub, details, reference, now)
	if err != nil {
		logger.Warn("admin notification render failed", "reference", reference, "error", err)
		return false
	}

	msg := d.newMessage(d.opts.AdminEmail, AdminSubject(sub, details), adminHTML, reference)
	if att := ProofAttachment(sub); att != nil {
		msg.Attachments = []esp.Attachment{*att}
	}

	result, err := d.sender.Send(ctx, msg)
	if err != nil {
		logger.Warn("admin notification failed",
			"admin_email", d.opts.AdminEmail,
			"transaction_id", sub.TransactionID,
			"reference", reference,
			"error", err,
		)
		return false
	}
	logger.Info("admin notification sent",
		"admin_email", d.opts.AdminEmail,
		"message_id", result.MessageID,
		"attachments", len(msg.Attachments),
		"reference", reference,
	)
	return true
}

// SendTestEmail sends the fixed diagnostic message to the admin address.
func (d *Dispatcher) SendTestEmail(ctx context.Context) (*esp.SendResult, error) {
	msg := d.newMessage(d.opts.AdminEmail, testEmailSubject, testEmailHTML, uuid.NewString())
	result, err := d.sender.Send(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("send test email: %w", err)
	}
	return result, nil
}

// AdminEmail returns the admin recipient address.
func (d *Dispatcher) AdminEmail() string { return d.opts.AdminEmail }

func (d *Dispatcher) newMessage(to, subject, htmlBody, reference string) *esp.Message {
	return &esp.Message{
		FromName:    d.opts.FromName,
		FromEmail:   d.opts.FromEmail,
		To:          to,
		Subject:     subject,
		HTMLContent: htmlBody,
		Reference:   reference,
		Headers:     map[string]string{ReferenceHeader: reference},
	}
}

// CustomerSubject is the subject line of the customer confirmation.
func CustomerSubject(details membership.PlanDetails) string {
	return fmt.Sprintf("🎉 Your %s Confirmation", details.DisplayName)
}

// AdminSubject is the subject line of the admin alert.
func AdminSubject(sub *membership.Submission, details membership.PlanDetails) string {
	return fmt.Sprintf("⚠️ New %s Purchase (%s) - %s", details.DisplayName, sub.PaymentMethod, sub.Email)
}

// ProofAttachment converts the submitted proof image into an attachment
// named giftcard_<transactionId><ext>. It returns nil without an image.
func ProofAttachment(sub *membership.Submission) *esp.Attachment {
	if sub.ProofImage == nil {
		return nil
	}
	contentType := sub.ProofImage.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &esp.Attachment{
		Filename:    "giftcard_" + sub.TransactionID + sub.ProofImage.Extension(),
		ContentType: contentType,
		Content:     sub.ProofImage.Content,
	}
}
