package http

import (
	"net/http"
)

func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	entries, err := parseRosterUpload(w, r, s.maxUploadBytes)
	if err != nil {
		s.writeError(w, r, "Roster upload rejected", err)
		return
	}
	toDelete, err := s.reconciler.Preview(r.Context(), entries)
	if err != nil {
		s.writeError(w, r, "Import preview failed", err)
		return
	}
	NewJSONResponse().
		Set("toDelete", toDelete).
		Set("members", len(entries)).
		Write(w)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	entries, err := parseRosterUpload(w, r, s.maxUploadBytes)
	if err != nil {
		s.writeError(w, r, "Roster upload rejected", err)
		return
	}
	res, err := s.reconciler.Commit(r.Context(), entries)
	if err != nil {
		s.writeError(w, r, "Import failed", err)
		return
	}
	NewJSONResponse().
		Set("imported", res.Imported).
		Set("skipped", res.Skipped).
		Set("removed", res.Removed).
		Write(w)
}
