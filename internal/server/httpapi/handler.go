package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/placesync/internal/common"
	"github.com/dmitrijs2005/placesync/internal/server/models"
	"github.com/dmitrijs2005/placesync/internal/server/repositories/places"
	"github.com/dmitrijs2005/placesync/internal/server/services"
)

const maxBodyBytes = 1 << 20

// PlaceService is the business layer behind the places endpoints.
type PlaceService interface {
	List(ctx context.Context, userID string, since int64) ([]*models.Place, int64, error)
	Get(ctx context.Context, userID, id string) (*models.Place, error)
	Put(ctx context.Context, userID string, p *models.Place) (int64, error)
	Delete(ctx context.Context, userID, id string, version int64, modifiedAt time.Time) (int64, error)
	Status(ctx context.Context, userID string) (*models.SyncStatus, error)
}

func (s *HTTPServer) ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pingResponse{Status: "OK"})
}

func (s *HTTPServer) listPlaces(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		since = n
	}

	items, cursor, err := s.places.List(r.Context(), userID, since)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := listResponse{Places: make([]*placeDTO, 0, len(items)), Cursor: cursor}
	for _, p := range items {
		resp.Places = append(resp.Places, toDTO(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) getPlace(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	p, err := s.places.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(p))
}

func (s *HTTPServer) putPlace(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id := r.PathValue("id")

	var in placeDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if in.ID == "" {
		in.ID = id
	}
	if in.ID != id {
		writeError(w, http.StatusBadRequest, "id mismatch")
		return
	}

	v, err := s.places.Put(r.Context(), userID, in.toModel())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acceptedResponse{AcceptedVersion: v})
}

func (s *HTTPServer) deletePlace(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	version, err := strconv.ParseInt(r.URL.Query().Get("version"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid version")
		return
	}

	// absent on old clients; the service then stamps its own clock
	var modifiedAt time.Time
	if v := r.URL.Query().Get("last_modified_at"); v != "" {
		modifiedAt, err = time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid last_modified_at")
			return
		}
	}

	v, err := s.places.Delete(r.Context(), userID, r.PathValue("id"), version, modifiedAt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acceptedResponse{AcceptedVersion: v})
}

func (s *HTTPServer) syncStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	st, err := s.places.Status(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(st))
}

// fail maps service errors to HTTP statuses.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ce *services.ConflictError
	switch {
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, conflictResponse{
			ServerVersion: ce.Current.Version,
			Place:         toDTO(ce.Current),
		})
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrInvalidRecord), errors.Is(err, places.ErrForeignID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to write
	default:
		s.logger.Error(r.Context(), "request failed", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
