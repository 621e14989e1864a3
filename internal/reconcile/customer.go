package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/gjall/internal/domain"
)

// handleCustomerCreated acknowledges provider-side customer creation. The
// checkout flow creates the local row before redirecting, so a found row is
// a no-op. A customer created entirely outside this application carries no
// local user id and cannot be linked; it is logged and skipped rather than
// inventing a user.
func (h *Handlers) handleCustomerCreated(ctx context.Context, event stripe.Event) error {
	var cust customerEvent
	if err := json.Unmarshal(event.Data.Raw, &cust); err != nil {
		h.logger.ErrorContext(ctx, "malformed customer payload",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()))
		return nil
	}

	_, err := h.store.GetCustomerByStripeID(ctx, cust.ID)
	if err != nil {
		if domain.IsNotFound(err) {
			h.logger.WarnContext(ctx, "customer created outside application, no local user to link",
				slog.String("stripe_customer_id", cust.ID),
				slog.String("email", cust.Email))
			return nil
		}
		return err
	}
	return nil
}
