package egress

import (
	"context"

	"github.com/nkiryanov/payengine/internal/models"
)

// Sink consumes account snapshot rows. Row order is unspecified.
type Sink interface {
	WriteAccount(ctx context.Context, view models.AccountView) error
}
