package carrier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
)

func TestDigest(t *testing.T) {
	// value produced by the carrier's reference SDK for the same input
	assert.Equal(t, "Ko/BmyHjLAZrciInEMhORA==", Digest(`{"a":"b c"}`, "1718000000", "secret"))
}

func TestQueryRoute(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		_, _ = w.Write([]byte(`{"apiResultCode":"A1000","apiResultData":"{\"success\":true}"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{PartnerID: "P1", Checkword: "secret", BaseURL: srv.URL, Timeout: time.Second})
	c.now = func() time.Time { return time.Unix(1718000000, 0) }

	body, err := c.QueryRoute(context.Background(), "1718000000123ABCDEF")
	require.NoError(t, err)
	assert.Contains(t, string(body), "A1000")

	assert.Equal(t, "P1", form.Get("partnerID"))
	assert.Equal(t, serviceSearchRoutes, form.Get("serviceCode"))
	assert.Equal(t, "1718000000", form.Get("timestamp"))
	assert.NotEmpty(t, form.Get("requestID"))
	assert.Equal(t, Digest(form.Get("msgData"), "1718000000", "secret"), form.Get("msgDigest"))

	var q routeQuery
	require.NoError(t, json.Unmarshal([]byte(form.Get("msgData")), &q))
	assert.Equal(t, []string{"1718000000123ABCDEF"}, q.TrackingNumber)
	assert.Equal(t, trackByOrderNumber, q.TrackingType)
}

func TestQueryRoute_GatewayErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }},
		{"not json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>")) }},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			c := NewClient(Config{PartnerID: "P1", Checkword: "secret", BaseURL: srv.URL, Timeout: 200 * time.Millisecond})

			_, err := c.QueryRoute(context.Background(), "N1")
			assert.ErrorIs(t, err, apperr.ErrGateway)
		})
	}
}

func TestQueryRoute_RequiresOrderNumber(t *testing.T) {
	_, err := NewClient(Config{}).QueryRoute(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestConfigured(t *testing.T) {
	assert.False(t, NewClient(Config{}).Configured())
	assert.True(t, NewClient(Config{PartnerID: "p", Checkword: "c"}).Configured())
}
