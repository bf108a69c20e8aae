package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/ubongpr7/music-booking/internal/config"
	"github.com/ubongpr7/music-booking/internal/logger"
	"github.com/ubongpr7/music-booking/internal/models"
)

const metadataGroupReference = "booking_group_reference"

// StripeGateway implements PaymentGateway against Stripe Checkout and
// translates Stripe webhook deliveries into payment events.
type StripeGateway struct {
	cfg    config.StripeConfig
	logger *logger.Logger
}

func NewStripeGateway(cfg config.StripeConfig, log *logger.Logger) *StripeGateway {
	stripe.Key = cfg.SecretKey
	return &StripeGateway{cfg: cfg, logger: log}
}

// CreateCheckoutSession opens a Stripe Checkout session for the group's
// total and returns the hosted payment page URL. The group reference rides
// along as metadata so the confirmation webhook can find its way back.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, group *models.BookingGroup, ticketCount int, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		SuccessURL:         stripe.String(successURL),
		CancelURL:          stripe.String(cancelURL),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(g.cfg.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%d tickets for event", ticketCount)),
					},
					// Stripe takes the amount in cents, one line item for
					// the whole group.
					UnitAmount: stripe.Int64(int64(group.TotalPrice * 100)),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataGroupReference, group.Reference)

	sess, err := session.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// WebhookError carries both a safe public message and the detailed internal
// one, plus the HTTP status that tells Stripe whether to redeliver.
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

// ParseWebhook verifies a Stripe webhook delivery and translates it into the
// processor-neutral payment event the coordinator consumes.
func (g *StripeGateway) ParseWebhook(r *http.Request) (*models.PaymentEvent, *WebhookError) {
	if g.cfg.WebhookSecret == "" {
		g.logger.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return nil, &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("read webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	opts := webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), g.cfg.WebhookSecret, opts)
	if err != nil {
		g.logger.Error("WEBHOOK", fmt.Sprintf("signature verification failed: %v", err))
		return nil, &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Webhook signature verification failed",
			InternalError: fmt.Sprintf("signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	g.logger.LogWebhook(string(event.Type), "verified Stripe event")

	switch event.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid event data",
				InternalError: fmt.Sprintf("unmarshal checkout session: %v", err),
				OriginalErr:   err,
			}
		}

		reference := sess.Metadata[metadataGroupReference]
		if reference == "" {
			return nil, &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid checkout session data",
				InternalError: "checkout session has no booking group reference in metadata",
			}
		}

		return &models.PaymentEvent{
			Type:           EventCheckoutCompleted,
			TransactionID:  sess.ID,
			GroupReference: reference,
			Amount:         float64(sess.AmountTotal) / 100,
		}, nil

	case EventPaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid event data",
				InternalError: fmt.Sprintf("unmarshal invoice: %v", err),
				OriginalErr:   err,
			}
		}
		return &models.PaymentEvent{
			Type:           EventPaymentFailed,
			TransactionID:  invoice.ID,
			GroupReference: invoice.Metadata[metadataGroupReference],
		}, nil

	default:
		g.logger.Info("WEBHOOK", fmt.Sprintf("unhandled event type: %s", event.Type))
		return nil, nil
	}
}
