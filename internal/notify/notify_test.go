package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/membership-api/internal/config"
	"github.com/ignite/membership-api/internal/esp"
	"github.com/ignite/membership-api/internal/membership"
)

// fakeSender records every message and fails sends to addresses in failFor.
type fakeSender struct {
	mu      sync.Mutex
	sent    []*esp.Message
	failFor map[string]error
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Send(ctx context.Context, msg *esp.Message) (*esp.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if err := f.failFor[msg.To]; err != nil {
		return nil, err
	}
	return &esp.SendResult{MessageID: "msg-" + msg.To, ESPType: "fake", SentAt: time.Now()}, nil
}

var fixedNow = time.Date(2026, time.March, 2, 15, 4, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		FromName:   "Simone Susinna Fan Club",
		FromEmail:  "club@example.com",
		AdminEmail: "admin@example.com",
		PortalURL:  "https://fanclub.simonesusinna.com/portal",
		Location:   time.UTC,
		Clock:      func() time.Time { return fixedNow },
	}
}

func giftCardSubmission() *membership.Submission {
	return &membership.Submission{
		Email:         "fan@example.com",
		Plan:          "gold",
		PaymentMethod: membership.PaymentGiftCard,
		TransactionID: "TX-1",
		GiftCardPIN:   "12345678",
		ProofImage:    &membership.ProofImage{Filename: "card.png", ContentType: "image/png", Content: []byte("img")},
	}
}

func TestDispatchSendsCustomerThenAdmin(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, testOptions())

	outcome, err := d.Dispatch(context.Background(), giftCardSubmission(), membership.Lookup("gold"))
	require.NoError(t, err)
	assert.True(t, outcome.CustomerSent)
	assert.True(t, outcome.AdminSent)
	assert.NotEmpty(t, outcome.Reference)

	require.Len(t, sender.sent, 2)
	customer, admin := sender.sent[0], sender.sent[1]

	assert.Equal(t, "fan@example.com", customer.To)
	assert.Equal(t, "🎉 Your Gold Membership Confirmation", customer.Subject)
	assert.Empty(t, customer.Attachments)
	assert.Equal(t, outcome.Reference, customer.Headers[ReferenceHeader])
	assert.Equal(t, "club@example.com", customer.FromEmail)
	assert.Equal(t, "Simone Susinna Fan Club", customer.FromName)

	assert.Equal(t, "admin@example.com", admin.To)
	assert.Equal(t, "⚠️ New Gold Membership Purchase (Gift Card) - fan@example.com", admin.Subject)
	require.Len(t, admin.Attachments, 1)
	assert.Equal(t, "giftcard_TX-1.png", admin.Attachments[0].Filename)
	assert.Equal(t, "image/png", admin.Attachments[0].ContentType)
	assert.Equal(t, []byte("img"), admin.Attachments[0].Content)
}

func TestDispatchCustomerFailureSkipsAdmin(t *testing.T) {
	sender := &fakeSender{failFor: map[string]error{"fan@example.com": errors.New("smtp down")}}
	d := NewDispatcher(sender, testOptions())

	outcome, err := d.Dispatch(context.Background(), giftCardSubmission(), membership.Lookup("gold"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCustomerDispatch)
	assert.False(t, outcome.CustomerSent)
	assert.False(t, outcome.AdminSent)
	assert.Len(t, sender.sent, 1)
}

func TestDispatchAdminFailureIsBestEffort(t *testing.T) {
	sender := &fakeSender{failFor: map[string]error{"admin@example.com": errors.New("rejected")}}
	d := NewDispatcher(sender, testOptions())

	outcome, err := d.Dispatch(context.Background(), giftCardSubmission(), membership.Lookup("gold"))
	require.NoError(t, err)
	assert.True(t, outcome.CustomerSent)
	assert.False(t, outcome.AdminSent)
	assert.Len(t, sender.sent, 2)
}

func TestDispatchWithoutImageHasNoAttachment(t *testing.T) {
	sender := &fakeSender{}
	sub := giftCardSubmission()
	sub.ProofImage = nil

	_, err := NewDispatcher(sender, testOptions()).Dispatch(context.Background(), sub, membership.Lookup("gold"))
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)
	assert.Empty(t, sender.sent[1].Attachments)
	assert.Contains(t, sender.sent[1].HTMLContent, "❌ No")
}

func TestCustomerTemplate(t *testing.T) {
	r := NewRenderer(nil, RendererOptions{
		BrandName: "Simone Susinna Fan Club",
		PortalURL: "https://fanclub.simonesusinna.com/portal",
		Location:  time.UTC,
	})
	sub := &membership.Submission{Email: "fan@example.com", Plan: "silver", PaymentMethod: "PayPal", TransactionID: "TX-55"}

	out, err := r.Customer(sub, membership.Lookup("silver"), fixedNow)
	require.NoError(t, err)
	assert.Contains(t, out, "Your Silver Membership is now active")
	assert.Contains(t, out, "€649.99")
	assert.Contains(t, out, "PayPal")
	assert.Contains(t, out, "TX-55")
	assert.Contains(t, out, "Monday, March 2, 2026")
	assert.Contains(t, out, "background-color: #c0c0c0")
	assert.Contains(t, out, `href="https://fanclub.simonesusinna.com/portal"`)
	assert.Contains(t, out, "&copy; 2026 Simone Susinna Fan Club")
}

func TestAdminTemplateGiftCard(t *testing.T) {
	r := NewRenderer(nil, RendererOptions{BrandName: "Simone Susinna Fan Club", Location: time.UTC})

	out, err := r.Admin(giftCardSubmission(), membership.Lookup("gold"), "ref-1", fixedNow)
	require.NoError(t, err)
	assert.Contains(t, out, "Action Required")
	assert.NotContains(t, out, "payment received")
	assert.Contains(t, out, "Monday, March 2, 2026 at 03:04 PM")
	assert.Contains(t, out, "fan@example.com")
	assert.Contains(t, out, "Gold Membership (€999.99)")
	assert.Contains(t, out, "<code>TX-1</code>")
	assert.Contains(t, out, "12345678")
	assert.Contains(t, out, "✅ Yes")
	assert.Contains(t, out, "Confirm the gift card PIN is valid")
}

func TestAdminTemplateOtherPayment(t *testing.T) {
	r := NewRenderer(nil, RendererOptions{BrandName: "Simone Susinna Fan Club", Location: time.UTC})
	sub := &membership.Submission{Email: "fan@example.com", Plan: "bronze", PaymentMethod: "PayPal", TransactionID: "TX-2", GiftCardPIN: "9999"}

	out, err := r.Admin(sub, membership.Lookup("bronze"), "ref-2", fixedNow)
	require.NoError(t, err)
	assert.Contains(t, out, "PayPal payment received.")
	assert.NotContains(t, out, "Action Required")
	assert.NotContains(t, out, "Gift Card PIN")
	assert.NotContains(t, out, "9999")
	assert.Contains(t, out, "Payment has been processed automatically")
}

func TestTemplatesEscapeUserInput(t *testing.T) {
	r := NewRenderer(nil, RendererOptions{Location: time.UTC})
	sub := &membership.Submission{
		Email:         "fan@example.com",
		Plan:          "<script>alert(1)</script>",
		PaymentMethod: "<b>Cash</b>",
		TransactionID: `"><img src=x>`,
	}
	details := membership.Lookup(sub.Plan)

	customer, err := r.Customer(sub, details, fixedNow)
	require.NoError(t, err)
	admin, err := r.Admin(sub, details, "ref", fixedNow)
	require.NoError(t, err)

	for _, out := range []string{customer, admin} {
		assert.NotContains(t, out, "<script>")
		assert.NotContains(t, out, "<b>Cash</b>")
		assert.NotContains(t, out, `"><img`)
		assert.Contains(t, out, "&lt;script&gt;")
	}
}

func TestDisplayPIN(t *testing.T) {
	tests := []struct {
		pin  string
		mask bool
		want string
	}{
		{"", false, "N/A"},
		{"", true, "N/A"},
		{"12345678", false, "12345678"},
		{"12345678", true, "12****78"},
		{"123456", true, "12****56"},
		{"12345", true, "****"},
		{"1234", true, "****"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DisplayPIN(tt.pin, tt.mask), "pin=%q mask=%v", tt.pin, tt.mask)
	}
}

func TestMaskedPINInAdminEmail(t *testing.T) {
	opts := testOptions()
	opts.MaskGiftCardPIN = true
	sender := &fakeSender{}

	_, err := NewDispatcher(sender, opts).Dispatch(context.Background(), giftCardSubmission(), membership.Lookup("gold"))
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[1].HTMLContent, "12****78")
	assert.NotContains(t, sender.sent[1].HTMLContent, "12345678")
}

func TestDispatcherRendererUsesDispatchOptions(t *testing.T) {
	opts := testOptions()
	opts.MaskGiftCardPIN = true
	sender := &fakeSender{}
	d := NewDispatcher(sender, opts)

	out, err := d.Renderer().Admin(giftCardSubmission(), membership.Lookup("gold"), "preview", fixedNow)
	require.NoError(t, err)
	assert.Contains(t, out, "12****78")
	assert.Contains(t, out, "Simone Susinna Fan Club Admin Panel")
	assert.Empty(t, sender.sent, "rendering must not send")
}

func TestProofAttachmentDefaultsExtension(t *testing.T) {
	sub := giftCardSubmission()
	sub.ProofImage.Filename = "upload"
	att := ProofAttachment(sub)
	require.NotNil(t, att)
	assert.Equal(t, "giftcard_TX-1.jpg", att.Filename)

	sub.ProofImage = nil
	assert.Nil(t, ProofAttachment(sub))
}

func TestSendTestEmail(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, testOptions())

	_, err := d.SendTestEmail(context.Background())
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "admin@example.com", sender.sent[0].To)
	assert.Equal(t, "🧪 Test Email - Admin Notifications", sender.sent[0].Subject)
	assert.True(t, strings.HasPrefix(sender.sent[0].HTMLContent, "<h2>Test Email</h2>"))

	sender.failFor = map[string]error{"admin@example.com": errors.New("boom")}
	_, err = d.SendTestEmail(context.Background())
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mail.FromEmail = "club@example.com"
	cfg.Mail.AdminEmail = "admin@example.com"
	cfg.Notify.MaskGiftCardPIN = true

	opts := OptionsFromConfig(&cfg)
	assert.Equal(t, "Simone Susinna Fan Club", opts.FromName)
	assert.Equal(t, "club@example.com", opts.FromEmail)
	assert.Equal(t, "admin@example.com", opts.AdminEmail)
	assert.True(t, opts.MaskGiftCardPIN)
	assert.Equal(t, time.UTC, opts.Location)
}

func TestTemplateServiceCachesTemplates(t *testing.T) {
	ts := NewTemplateService()
	out, err := ts.RenderString("greeting", "Hi {{ name | escape }}", map[string]interface{}{"name": "<Ann>"})
	require.NoError(t, err)
	assert.Equal(t, "Hi &lt;Ann&gt;", out)

	// Cached template wins over new source for the same key.
	out, err = ts.RenderString("greeting", "ignored", map[string]interface{}{"name": "Bo"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Bo", out)

	_, err = ts.RenderString("", "{% nosuchtag %}", nil)
	assert.Error(t, err)
	_, err = ts.Render("missing", nil)
	assert.Error(t, err)
}
