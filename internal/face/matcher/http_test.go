package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smallbiznis/gymgate/internal/face/domain"
	"github.com/stretchr/testify/require"
)

func TestClientRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /collections/gogym-faces-gym-001", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "face-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusConflict)
	})
	mux.HandleFunc("POST /collections/gogym-faces-gym-001/faces", func(w http.ResponseWriter, r *http.Request) {
		var req indexRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ExternalID != "42" || req.MaxFaces != 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"face_records":[{"face_id":"f-1"}]}`))
	})
	mux.HandleFunc("POST /collections/gogym-faces-gym-001/search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"matches":[{"face_id":"f-low","similarity":70},{"face_id":"f-1","external_id":"42","similarity":97.5}]}`))
	})
	mux.HandleFunc("POST /collections/gogym-faces-gym-001/faces/delete", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "face-key", srv.Client())
	ctx := context.Background()

	require.ErrorIs(t, client.CreateCollection(ctx, "gogym-faces-gym-001"), domain.ErrCollectionExists)

	faceID, err := client.IndexFace(ctx, "gogym-faces-gym-001", []byte("img"), "42")
	require.NoError(t, err)
	require.Equal(t, "f-1", faceID)

	match, err := client.SearchFaces(ctx, "gogym-faces-gym-001", []byte("img"), 80)
	require.NoError(t, err)
	require.NotNil(t, match)
	require.Equal(t, "f-1", match.FaceID)

	require.NoError(t, client.DeleteFaces(ctx, "gogym-faces-gym-001", []string{"f-1"}))
}

func TestClientNoFaceAndOutage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/c/faces":
			_, _ = w.Write([]byte(`{"face_records":[]}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", srv.Client())
	_, err := client.IndexFace(context.Background(), "c", []byte("img"), "1")
	require.ErrorIs(t, err, domain.ErrNoFaceDetected)

	_, err = client.SearchFaces(context.Background(), "c", []byte("img"), 80)
	require.True(t, errors.Is(err, domain.ErrMatcherUnavailable))
}
