package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ewintr.nl/conceptube/fetch"
	"github.com/stretchr/testify/assert"
)

func TestCheckHealth(t *testing.T) {
	for _, tc := range []struct {
		name    string
		status  int
		healthy bool
	}{
		{name: "healthy", status: http.StatusOK, healthy: true},
		{name: "unhealthy", status: http.StatusServiceUnavailable},
		{name: "no content", status: http.StatusNoContent},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			err := fetch.CheckHealth(context.Background(), srv.Client(), "transcript service", srv.URL)
			if tc.healthy {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, fetch.ErrUpstreamUnavailable)
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		assert.ErrorIs(t, fetch.CheckHealth(context.Background(), http.DefaultClient, "mapper", url), fetch.ErrUpstreamUnavailable)
	})
}
