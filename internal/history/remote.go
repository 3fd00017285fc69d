package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionDocument is the remote store's schema for one session, kept per
// user in an append-only collection and read newest-first.
type SessionDocument struct {
	Timestamp    time.Time `json:"timestamp"`
	Mode         string    `json:"mode"`
	Duration     int       `json:"duration"`
	Before       float64   `json:"before"`
	After        float64   `json:"after"`
	Reduction    float64   `json:"reduction"`
	AvgFrequency float64   `json:"avgFrequency"`
}

// RemoteStore is the external long-term persistence collaborator. The core
// only relies on its append/list contract.
type RemoteStore interface {
	// Append adds one session document to the user's collection.
	Append(ctx context.Context, userID string, doc SessionDocument) error

	// List returns the user's documents ordered by timestamp descending.
	List(ctx context.Context, userID string) ([]SessionDocument, error)
}

// HTTPRemoteStore talks to the remote session store over HTTP/JSON:
// POST and GET on {base}/users/{id}/sessions with an optional bearer token.
type HTTPRemoteStore struct {
	base   string
	token  string
	client *http.Client
	log    *logrus.Logger
}

// NewHTTPRemoteStore creates a remote store client for the given base URL.
func NewHTTPRemoteStore(base, token string, log *logrus.Logger) *HTTPRemoteStore {
	if log == nil {
		log = logrus.New()
	}
	return &HTTPRemoteStore{
		base:   base,
		token:  token,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}
}

func (s *HTTPRemoteStore) sessionsURL(userID string) string {
	return fmt.Sprintf("%s/users/%s/sessions", s.base, url.PathEscape(userID))
}

func (s *HTTPRemoteStore) Append(ctx context.Context, userID string, doc SessionDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal session document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sessionsURL(userID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote append failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("remote append failed: unexpected status %s", resp.Status)
	}
	return nil
}

func (s *HTTPRemoteStore) List(ctx context.Context, userID string) ([]SessionDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.sessionsURL(userID), nil)
	if err != nil {
		return nil, err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote list failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote list failed: unexpected status %s", resp.Status)
	}

	var docs []SessionDocument
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to parse remote session list: %w", err)
	}

	// Enforce the newest-first contract regardless of server ordering.
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Timestamp.After(docs[j].Timestamp)
	})

	return docs, nil
}
