package handlers

import (
	"net/http"

	"github.com/nkiryanov/payengine/internal/handlers/render"
)

func handleStats(batchService batchService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, batchService.Totals())
	})
}

func handleHealthz() http.Handler {
	type response struct {
		Status string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, response{Status: "ok"})
	})
}
