// Package api is the HTTP client for the burnnote server. It deals only in
// ciphertext: encryption and decryption happen in cryptox before and after
// these calls.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dvoloshins/burnnote/internal/common"
)

// Client talks to a burnnote server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client for the given base URL (e.g. "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// CreateNoteRequest mirrors the server's creation payload.
type CreateNoteRequest struct {
	EncryptedContent []byte     `json:"encryptedContent"`
	IV               []byte     `json:"iv"`
	PasswordHash     string     `json:"passwordHash,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	FileName         string     `json:"fileName,omitempty"`
	FileType         string     `json:"fileType,omitempty"`
	EncryptedFile    []byte     `json:"encryptedFile,omitempty"`
	FileIV           []byte     `json:"fileIv,omitempty"`
}

// NotePayload is the ciphertext released by the server for a single read.
type NotePayload struct {
	EncryptedContent []byte `json:"encryptedContent"`
	IV               []byte `json:"iv"`
	FileName         string `json:"fileName,omitempty"`
	FileType         string `json:"fileType,omitempty"`
	EncryptedFile    []byte `json:"encryptedFile,omitempty"`
	FileIV           []byte `json:"fileIv,omitempty"`
}

// CreateNote uploads an encrypted note and returns its id.
func (c *Client) CreateNote(ctx context.Context, req CreateNoteRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/notes", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// FetchNote retrieves the ciphertext of a note. The note stays readable
// until ConfirmRead; a wrong password hash returns common.ErrUnauthorized
// without consuming the note.
func (c *Client) FetchNote(ctx context.Context, id, passwordHash string) (*NotePayload, error) {
	var payload NotePayload
	if passwordHash == "" {
		if err := c.doJSON(ctx, http.MethodGet, "/api/notes/"+id, nil, &payload); err != nil {
			return nil, err
		}
		return &payload, nil
	}

	body := struct {
		PasswordHash string `json:"passwordHash"`
	}{PasswordHash: passwordHash}
	if err := c.doJSON(ctx, http.MethodPost, "/api/notes/"+id, body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ConfirmRead tells the server the note was delivered; the server then
// schedules permanent deletion.
func (c *Client) ConfirmRead(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/notes/"+id+"/read", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("response decode error: %w", err)
	}
	return nil
}

// statusError maps HTTP status codes onto the shared sentinel errors.
func statusError(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return common.ErrNotFound
	case code == http.StatusUnauthorized:
		return common.ErrUnauthorized
	case code == http.StatusBadRequest || code == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: server rejected request (%d)", common.ErrValidation, code)
	default:
		return fmt.Errorf("%w: unexpected status %d", common.ErrInternal, code)
	}
}
