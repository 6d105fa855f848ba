package controllers

import (
	"net/http"

	"github.com/firmasegura/certifications-backend/api/responses"
	"github.com/firmasegura/certifications-backend/pkg/catalog"
)

// Catalog serves the reference lists used by the certification form.
func Catalog(cat *catalog.Catalog) http.HandlerFunc {
	snapshot := cat.Snapshot()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		responses.WriteSuccess(w, snapshot)
	}
}
