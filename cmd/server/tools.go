package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ignite/membership-api/internal/esp"
	"github.com/ignite/membership-api/internal/membership"
	"github.com/ignite/membership-api/internal/notify"
)

func testEmailCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "test-email",
		Short: "Send the diagnostic email to the admin address and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, true)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Mail.Timeout()+5*time.Second)
			defer cancel()

			sender, err := esp.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to create mail sender: %w", err)
			}
			dispatcher := notify.NewDispatcher(sender, notify.OptionsFromConfig(cfg))
			result, err := dispatcher.SendTestEmail(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test email sent to %s via %s (message id %s)\n",
				dispatcher.AdminEmail(), result.ESPType, result.MessageID)
			return nil
		},
	}
}

func previewCmd(configPath *string) *cobra.Command {
	var (
		plan          string
		paymentMethod string
		kind          string
		email         string
		transactionID string
		pin           string
		withImage     bool
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render a notification email to stdout without sending it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, false)
			if err != nil {
				return err
			}

			sub := &membership.Submission{
				Email:         email,
				Plan:          plan,
				PaymentMethod: paymentMethod,
				TransactionID: transactionID,
				GiftCardPIN:   pin,
			}
			if withImage {
				sub.ProofImage = &membership.ProofImage{Filename: "preview.jpg", ContentType: "image/jpeg"}
			}
			details := membership.Lookup(plan)

			// Same renderer the server sends with; nothing leaves the process.
			dispatcher := notify.NewDispatcher(esp.NewLogSender(), notify.OptionsFromConfig(cfg))
			renderer := dispatcher.Renderer()

			var out string
			switch kind {
			case notify.TemplateCustomer:
				out, err = renderer.Customer(sub, details, time.Now())
			case notify.TemplateAdmin:
				out, err = renderer.Admin(sub, details, "preview", time.Now())
			default:
				return fmt.Errorf("unknown --kind %q (want %s or %s)", kind, notify.TemplateCustomer, notify.TemplateAdmin)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&plan, "plan", "gold", "Plan key (bronze, silver, gold)")
	cmd.Flags().StringVar(&paymentMethod, "payment", membership.PaymentGiftCard, "Payment method")
	cmd.Flags().StringVar(&kind, "kind", notify.TemplateCustomer, "Template to render (customer, admin)")
	cmd.Flags().StringVar(&email, "email", "member@example.com", "Customer email")
	cmd.Flags().StringVar(&transactionID, "transaction-id", "TX-PREVIEW", "Transaction id")
	cmd.Flags().StringVar(&pin, "pin", "12345678", "Gift card PIN")
	cmd.Flags().BoolVar(&withImage, "with-image", true, "Pretend a proof image was attached")

	return cmd
}
