// Package handlers contains the HTTP handlers of the API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/huangsam/codegrade/internal/apperrors"
	"github.com/huangsam/codegrade/internal/ratelimit"
	"github.com/huangsam/codegrade/schema"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Length limits of GitHub path parameters.
const (
	maxOwnerLen = 39
	maxNameLen  = 100
)

// SortFields are the accepted values of sortBy.
var SortFields = []string{"createdAt", "updatedAt", "lastAnalyzedAt", "lastQualityScore", "stars", "forks", "name", "fullName"}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("request body is required")
		}
		return apperrors.Validation("invalid JSON: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name, label string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, apperrors.Validation("Invalid %s ID", label)
	}
	return id, nil
}

func githubParams(r *http.Request, ownerKey, nameKey string) (string, string, error) {
	owner, name := r.PathValue(ownerKey), r.PathValue(nameKey)
	if owner == "" || len(owner) > maxOwnerLen {
		return "", "", apperrors.Validation("Invalid owner name")
	}
	if name == "" || len(name) > maxNameLen {
		return "", "", apperrors.Validation("Invalid repository name")
	}
	return owner, name, nil
}

func queryInt(q url.Values, key string, lo, hi int, msg string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, apperrors.Validation("%s", msg)
	}
	return n, nil
}

func queryScore(q url.Values, key string) (*float64, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 100 {
		return nil, apperrors.Validation("%s must be a number between 0 and 100", key)
	}
	return &v, nil
}

// parseRepositoryQuery validates the list query parameters.
func parseRepositoryQuery(r *http.Request) (schema.RepositoryQuery, error) {
	q := r.URL.Query()
	var (
		rq  schema.RepositoryQuery
		err error
	)
	if rq.Page, err = queryInt(q, "page", 1, 1<<30, "Page must be a positive integer"); err != nil {
		return rq, err
	}
	if rq.Limit, err = queryInt(q, "limit", 1, 100, "Limit must be between 1 and 100"); err != nil {
		return rq, err
	}
	if rq.SortBy = q.Get("sortBy"); rq.SortBy != "" && !slices.Contains(SortFields, rq.SortBy) {
		return rq, apperrors.Validation("Invalid sort field")
	}
	if rq.SortOrder = q.Get("sortOrder"); rq.SortOrder != "" && rq.SortOrder != "asc" && rq.SortOrder != "desc" {
		return rq, apperrors.Validation("Sort order must be asc or desc")
	}
	rq.Search = strings.TrimSpace(q.Get("search"))
	rq.Language = strings.TrimSpace(q.Get("language"))
	if rq.MinScore, err = queryScore(q, "minScore"); err != nil {
		return rq, err
	}
	if rq.MaxScore, err = queryScore(q, "maxScore"); err != nil {
		return rq, err
	}
	return rq, nil
}

// userID is the caller id set by the upstream auth layer.
func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ratelimit.HeaderUserID))
}
