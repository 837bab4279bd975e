package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/config"
	"beacon/internal/domain/services"
	"beacon/pkg/logger"
)

func newTestNominatim(t *testing.T, handler http.HandlerFunc) *Nominatim {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewNominatim(config.GeocoderConfig{BaseURL: srv.URL, UserAgent: "beacon-test"}, logger.NewNop())
}

func TestNominatim_Geocode(t *testing.T) {
	g := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Pune", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "beacon-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"18.5213738","lon":"73.8545071","display_name":"Pune, Maharashtra, India"}]`))
	})

	c, err := g.Geocode(context.Background(), "Pune")
	require.NoError(t, err)
	assert.InDelta(t, 18.5213738, c.Latitude, 1e-9)
	assert.InDelta(t, 73.8545071, c.Longitude, 1e-9)
	assert.Equal(t, "Pune, Maharashtra, India", c.Label)
}

func TestNominatim_NoMatch(t *testing.T) {
	g := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := g.Geocode(context.Background(), "Atlantis")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestNominatim_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"server error", http.StatusServiceUnavailable, `{}`},
		{"bad json", http.StatusOK, `[{"lat":`},
		{"bad coords", http.StatusOK, `[{"lat":"123","lon":"77"}]`},
		{"missing coords", http.StatusOK, `[{"display_name":"Null Island"}]`},
		{"missing lon", http.StatusOK, `[{"lat":"18.52","display_name":"Pune"}]`},
		{"text coords", http.StatusOK, `[{"lat":"north","lon":"east"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			})

			_, err := g.Geocode(context.Background(), "Delhi")
			require.Error(t, err)
			assert.NotErrorIs(t, err, services.ErrNotFound)
		})
	}
}
