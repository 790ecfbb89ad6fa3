package registration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"smsrouter/pkg/store"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newViewsServer(t *testing.T) (*store.Store, http.Handler) {
	t.Helper()

	s := mustStore(t)
	r := chi.NewRouter()
	NewViews(s, nil).RegisterRoutes(r)

	return s, r
}

func TestViewsListAndShow(t *testing.T) {
	s, router := newViewsServer(t)
	contact, _, err := s.Register(context.Background(), "sms", "+15550100", "Alice")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/registration", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var contacts []store.Contact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &contacts))
	require.Len(t, contacts, 1)
	require.Equal(t, "Alice", contacts[0].Name)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/registration/"+itoa(contact.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var shown store.Contact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shown))
	require.Equal(t, contact.ID, shown.ID)
}

func TestViewsEdit(t *testing.T) {
	s, router := newViewsServer(t)
	contact, _, err := s.Register(context.Background(), "sms", "+15550100", "Alice")
	require.NoError(t, err)

	body := strings.NewReader(`{"name": " Alicia "}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/registration/"+itoa(contact.ID)+"/edit", body))
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := s.Get(context.Background(), contact.ID)
	require.NoError(t, err)
	require.Equal(t, "Alicia", got.Name)
}

func TestViewsErrors(t *testing.T) {
	_, router := newViewsServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "missing contact", method: http.MethodGet, path: "/registration/7", want: http.StatusNotFound},
		{name: "non numeric id", method: http.MethodGet, path: "/registration/abc", want: http.StatusNotFound},
		{name: "edit missing contact", method: http.MethodPost, path: "/registration/7/edit", body: `{"name":"x"}`, want: http.StatusNotFound},
		{name: "edit invalid body", method: http.MethodPost, path: "/registration/7/edit", body: `{`, want: http.StatusBadRequest},
		{name: "edit blank name", method: http.MethodPost, path: "/registration/7/edit", body: `{"name":"  "}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			require.Equal(t, tt.want, rec.Code)
		})
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
