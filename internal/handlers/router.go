package handlers

import (
	"context"
	"net/http"

	"github.com/nkiryanov/payengine/internal/egress"
	"github.com/nkiryanov/payengine/internal/handlers/middleware"
	"github.com/nkiryanov/payengine/internal/ingress"
	"github.com/nkiryanov/payengine/internal/logger"
	"github.com/nkiryanov/payengine/internal/models"
	"github.com/nkiryanov/payengine/internal/service/batch"
	"github.com/nkiryanov/payengine/internal/service/stream"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	batchService batchService,
	accounts accountStore,
	tokens tokenParser,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(tokens)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	api := http.NewServeMux()

	api.Handle("POST /batches", withAuth(handleSubmitBatch(batchService, logger)))
	api.Handle("GET /accounts", withAuth(handleSnapshotAccounts(accounts, logger)))
	api.Handle("GET /accounts/{client}", withAuth(handleGetAccount(accounts)))
	api.Handle("GET /stats", withAuth(handleStats(batchService)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("GET /healthz", handleHealthz())

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type batchService interface {
	// Run processes the sources as one batch against the shared stores
	Run(ctx context.Context, sources []ingress.Ingress, opts batch.Options) (*stream.Report, error)

	// Totals reports lifetime counters across all batches
	Totals() batch.Totals
}

type accountStore interface {
	Get(clientID uint16) (*models.Account, bool)
	Snapshot(ctx context.Context, sink egress.Sink) error
}

type tokenParser interface {
	Parse(token string) (caller string, err error)
}
