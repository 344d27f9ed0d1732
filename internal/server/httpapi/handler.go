package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dvoloshins/burnnote/internal/common"
	"github.com/dvoloshins/burnnote/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// createNoteRequest is the statically-typed creation payload. Blob fields
// arrive as base64 strings and decode straight into byte slices.
type createNoteRequest struct {
	EncryptedContent []byte     `json:"encryptedContent"`
	IV               []byte     `json:"iv"`
	PasswordHash     string     `json:"passwordHash,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	FileName         string     `json:"fileName,omitempty"`
	FileType         string     `json:"fileType,omitempty"`
	EncryptedFile    []byte     `json:"encryptedFile,omitempty"`
	FileIV           []byte     `json:"fileIv,omitempty"`
}

type createNoteResponse struct {
	ID string `json:"id"`
}

type readNoteRequest struct {
	PasswordHash string `json:"passwordHash,omitempty"`
}

type readNoteResponse struct {
	EncryptedContent []byte `json:"encryptedContent"`
	IV               []byte `json:"iv"`
	FileName         string `json:"fileName,omitempty"`
	FileType         string `json:"fileType,omitempty"`
	EncryptedFile    []byte `json:"encryptedFile,omitempty"`
	FileIV           []byte `json:"fileIv,omitempty"`
}

type confirmReadResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) createNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if !s.readJSON(w, r, &req) {
		return
	}

	id, err := s.notes.CreateNote(r.Context(), services.CreateNoteParams{
		EncryptedContent: req.EncryptedContent,
		IV:               req.IV,
		PasswordHash:     req.PasswordHash,
		ExpiresAt:        req.ExpiresAt,
		FileName:         req.FileName,
		FileType:         req.FileType,
		EncryptedFile:    req.EncryptedFile,
		FileIV:           req.FileIV,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, createNoteResponse{ID: id})
}

func (s *Server) readNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// the password hash travels in the POST body; plain GET works for
	// unprotected notes
	var req readNoteRequest
	if r.Method == http.MethodPost && r.ContentLength != 0 {
		if !s.readJSON(w, r, &req) {
			return
		}
	}

	result, err := s.notes.ReadNote(r.Context(), id, req.PasswordHash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, readNoteResponse{
		EncryptedContent: result.EncryptedContent,
		IV:               result.IV,
		FileName:         result.FileName,
		FileType:         result.FileType,
		EncryptedFile:    result.EncryptedFile,
		FileIV:           result.FileIV,
	})
}

func (s *Server) confirmRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.notes.ConfirmRead(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, confirmReadResponse{Success: true})
}

// readJSON decodes the request body into v and handles decode failures.
// It returns false when a response has already been written.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "payload too large"})
		return false
	}
	if errors.Is(err, io.EOF) {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty request body"})
		return false
	}

	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	return false
}

// writeError flattens engine errors onto the external status codes. All
// denial reasons collapse to a single generic not-found response; the
// distinction only exists in server logs.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrUnauthorized):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "password required or incorrect"})
	case errors.Is(err, common.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "note not found"})
	default:
		s.logger.Error(r.Context(), "internal error", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(context.Background(), "response encode error", "error", err)
	}
}
