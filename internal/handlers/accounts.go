package handlers

import (
	"net/http"
	"strconv"

	egresscsv "github.com/nkiryanov/payengine/internal/egress/csv"
	"github.com/nkiryanov/payengine/internal/handlers/render"
	"github.com/nkiryanov/payengine/internal/logger"
)

// handleSnapshotAccounts streams the account snapshot as CSV. The snapshot
// runs concurrently with writers, so rows may reflect different instants
// while each row stays internally consistent.
func handleSnapshotAccounts(accounts accountStore, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")

		sink := egresscsv.NewWriter(w)
		if err := accounts.Snapshot(r.Context(), sink); err != nil {
			// Headers are gone already; all we can do is cut the response short
			l.Error("account snapshot failed", "error", err)
			return
		}

		if err := sink.Flush(); err != nil {
			l.Error("account snapshot flush failed", "error", err)
		}
	})
}

func handleGetAccount(accounts accountStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID, err := strconv.ParseUint(r.PathValue("client"), 10, 16)
		if err != nil {
			render.ServiceError(w, "Invalid client id", http.StatusBadRequest)
			return
		}

		account, ok := accounts.Get(uint16(clientID))
		if !ok {
			render.ServiceError(w, "Account not found", http.StatusNotFound)
			return
		}

		render.JSON(w, account.View())
	})
}
