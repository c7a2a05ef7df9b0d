package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gymconfigdomain "github.com/smallbiznis/gymgate/internal/gymconfig/domain"
	"github.com/smallbiznis/gymgate/internal/hardwaresync/domain"
	"github.com/stretchr/testify/require"
)

func TestSyncPostsPayload(t *testing.T) {
	var got domain.SyncPayload
	var auth string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/sync", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hardware_user_id":"XYZ-42"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.Client())
	validUntil := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id, err := c.Sync(context.Background(), gymconfigdomain.HardwareSettings{APIURL: srv.URL + "/", APIKey: "secret"}, domain.SyncPayload{
		UserID:        "1001",
		AccessMethods: []string{"qr"},
		Permissions:   domain.Permissions{Gates: domain.DefaultGates, TimeSlots: domain.DefaultTimeSlots, ValidUntil: validUntil},
	})
	require.NoError(t, err)
	require.Equal(t, "XYZ-42", id)
	require.Equal(t, "Bearer secret", auth)
	require.Equal(t, "1001", got.UserID)
	require.Equal(t, []string{"06:00-23:00"}, got.Permissions.TimeSlots)
	require.True(t, validUntil.Equal(got.Permissions.ValidUntil))
}

func TestSyncFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"missing id", http.StatusOK, `{}`},
		{"garbage", http.StatusOK, `not json`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.Client()).Sync(context.Background(), gymconfigdomain.HardwareSettings{APIURL: srv.URL}, domain.SyncPayload{UserID: "1"})
			require.ErrorIs(t, err, domain.ErrSyncFailed)
		})
	}
}

func TestRemove(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		paths = append(paths, r.URL.EscapedPath())
		switch r.URL.Path {
		case "/users/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/users/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	hw := gymconfigdomain.HardwareSettings{APIURL: srv.URL, APIKey: "k"}
	require.NoError(t, c.Remove(context.Background(), hw, "a b"))
	require.NoError(t, c.Remove(context.Background(), hw, "gone"))
	require.ErrorIs(t, c.Remove(context.Background(), hw, "broken"), domain.ErrSyncFailed)
	require.Equal(t, "/users/a%20b", paths[0])
}
