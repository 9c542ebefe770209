package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nkiryanov/payengine/internal/handlers/callerctx"
	"github.com/nkiryanov/payengine/internal/handlers/render"
	"github.com/nkiryanov/payengine/internal/ingress"
	ingresscsv "github.com/nkiryanov/payengine/internal/ingress/csv"
	"github.com/nkiryanov/payengine/internal/logger"
	"github.com/nkiryanov/payengine/internal/service/batch"
	"github.com/nkiryanov/payengine/internal/service/stream"
)

// handleSubmitBatch accepts a CSV transaction stream in the request body and
// runs it against the shared stores. Run options come from query parameters.
func handleSubmitBatch(batchService batchService, l logger.Logger) http.Handler {
	type response struct {
		BatchID     uuid.UUID             `json:"batch_id"`
		Processed   uint64                `json:"processed"`
		Skipped     uint64                `json:"skipped"`
		Aborted     bool                  `json:"aborted"`
		AbortReason string                `json:"abort_reason,omitempty"`
		Streams     []stream.StreamReport `json:"streams"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opts, err := batchOptionsFromQuery(r)
		if err != nil {
			var validationErrs validator.ValidationErrors
			if errors.As(err, &validationErrs) {
				render.ValidationErrors(w, validationErrs)
				return
			}
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
			return
		}

		caller, _ := callerctx.FromContext(r.Context())

		report, err := batchService.Run(r.Context(), []ingress.Ingress{ingresscsv.NewReader(r.Body)}, opts)
		if err != nil {
			l.Error("batch run failed", "caller", caller, "error", err)
			render.ServiceError(w, "Batch processing failed", http.StatusInternalServerError)
			return
		}
		l.Info("batch processed", "caller", caller, "processed", report.Processed, "skipped", report.Skipped)

		resp := response{
			BatchID:   uuid.New(),
			Processed: report.Processed,
			Skipped:   report.Skipped,
			Aborted:   report.Aborted,
			Streams:   report.Streams,
		}
		if report.AbortReason != nil {
			resp.AbortReason = report.AbortReason.Error()
		}

		render.JSON(w, resp)
	})
}

func batchOptionsFromQuery(r *http.Request) (batch.Options, error) {
	var opts batch.Options

	query := r.URL.Query()
	if raw := query.Get("shards"); raw != "" {
		shards, err := strconv.Atoi(raw)
		if err != nil {
			return opts, errors.New("shards must be an integer")
		}
		opts.Shards = shards
	}
	opts.Policy = query.Get("policy")
	opts.Combinator = query.Get("combinator")
	opts.Assignment = query.Get("assignment")

	if err := render.Validate(opts); err != nil {
		return opts, err
	}
	return opts, nil
}
