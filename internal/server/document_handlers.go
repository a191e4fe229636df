package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MeKo-Tech/lipi/internal/store"
)

// documentsHandler lists documents (GET) or accepts an upload (POST).
func (s *Server) documentsHandler(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		s.writeErrorResponse(w, "document storage not configured", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.listDocuments(w, r)
	case http.MethodPost:
		s.createDocument(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// documentHandler fetches (GET) or removes (DELETE) one document.
func (s *Server) documentHandler(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		s.writeErrorResponse(w, "document storage not configured", http.StatusServiceUnavailable)
		return
	}
	id, err := store.ParseID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	switch r.Method {
	case http.MethodGet:
		doc, err := s.docs.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		doc, err := s.docs.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.docs.Delete(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.blobs.Delete(r.Context(), doc.ImageKey); err != nil {
			slog.Warn("Failed to delete document image", "document", id.String(), "error", err)
		}
		documentsTotal.WithLabelValues("deleted").Inc()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	opts := store.ListOptions{}
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeErrorResponse(w, "invalid "+name, http.StatusBadRequest)
			return
		}
		*dst = n
	}
	docs, err := s.docs.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Count: len(docs)})
}

// createDocument stores the upload as a pending document and schedules
// OCR. The response reflects the state after scheduling, which is final
// when processing runs inline.
func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	up, ok := s.parseUpload(w, r, "image")
	if !ok {
		return
	}
	ctx := r.Context()
	key, err := s.blobs.Put(ctx, up.filename, up.data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	doc := &store.Document{Filename: up.filename, Language: up.language, ImageKey: key}
	if err := s.docs.Create(ctx, doc); err != nil {
		_ = s.blobs.Delete(ctx, key)
		s.writeError(w, err)
		return
	}
	documentsTotal.WithLabelValues("created").Inc()

	if err := s.jobs.EnqueueOCR(ctx, doc.ID); err != nil {
		slog.Error("Failed to schedule OCR", "document", doc.ID.String(), "error", err)
		s.writeErrorResponse(w, "failed to schedule OCR: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	current, err := s.docs.Get(ctx, doc.ID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, err)
		return
	}
	if err != nil {
		current = doc
	}
	w.Header().Set("Location", "/documents/"+doc.ID.String())
	s.writeJSON(w, http.StatusCreated, current)
}
