package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stockroom/internal/metrics"
)

func fakeEnv(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func newTestEmitter(baseURL string, env map[string]string, m *metrics.Metrics) *Emitter {
	return NewEmitter(Options{
		BaseURL:   baseURL,
		From:      "alerts@example.com",
		APIKeyEnv: "RESEND_API_KEY",
		Getenv:    fakeEnv(env),
	}, m, zap.NewNop().Sugar())
}

func TestEmitterMissingKeyFailsBeforeNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	m := metrics.New(nil)
	e := newTestEmitter(srv.URL, nil, m)
	_, err := e.Send(context.Background(), Request{Type: TypeLowStock, To: "admin@example.com"})

	require.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MailDeliveries().WithLabelValues(TypeLowStock, metrics.ResultNoKey)))
}

func TestEmitterReadsKeyAtInvocation(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer srv.Close()

	env := map[string]string{}
	e := newTestEmitter(srv.URL, env, nil)

	_, err := e.Send(context.Background(), Request{Type: TypeTest, To: "a@example.com"})
	require.ErrorIs(t, err, ErrMissingAPIKey)

	env["RESEND_API_KEY"] = "re_live"
	res, err := e.Send(context.Background(), Request{Type: TypeTest, To: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer re_live", auth)
	assert.Equal(t, "msg_1", res.ID)
}

func TestEmitterPostsRenderedEmail(t *testing.T) {
	var got resendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer srv.Close()

	m := metrics.New(nil)
	e := newTestEmitter(srv.URL, map[string]string{"RESEND_API_KEY": "k"}, m)
	res, err := e.Send(context.Background(), Request{
		Type:        TypeLowStock,
		To:          "admin@example.com",
		ItemName:    "Copper pipe",
		Quantity:    2,
		MinQuantity: 5,
		CompanyName: "Acme Plumbing",
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, TypeLowStock, res.Type)
	assert.Equal(t, "admin@example.com", res.Recipient)
	assert.Equal(t, []string{"admin@example.com"}, got.To)
	assert.Equal(t, "alerts@example.com", got.From)
	assert.Equal(t, "Low Stock Alert: Copper pipe", got.Subject)
	assert.Contains(t, got.HTML, "Copper pipe")
	assert.Contains(t, got.HTML, "Acme Plumbing")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MailDeliveries().WithLabelValues(TypeLowStock, metrics.ResultOK)))
}

func TestEmitterProviderErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer srv.Close()

	e := newTestEmitter(srv.URL, map[string]string{"RESEND_API_KEY": "k"}, nil)
	_, err := e.Send(context.Background(), Request{Type: TypeTest, To: "a@example.com"})

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, http.StatusUnprocessableEntity, de.Status)
	assert.Contains(t, de.Body, "invalid from")
}

func TestEmitterRequiresRecipient(t *testing.T) {
	e := newTestEmitter("http://unused", map[string]string{"RESEND_API_KEY": "k"}, nil)
	_, err := e.Send(context.Background(), Request{Type: TypeTest})
	require.ErrorIs(t, err, ErrMissingRecipient)
}

func TestRenderSubjects(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		want string
	}{
		{"stock request", Request{Type: TypeStockRequest, ItemName: "Valve"}, "New Stock Request: Valve"},
		{"purchase", Request{Type: TypePurchase, ItemName: "Valve"}, "Purchase Recorded: Valve"},
		{"tech low stock", Request{Type: TypeTechLowStock, ItemName: "Valve"}, "Technician Low Stock Alert: Valve"},
		{"user activity", Request{Type: TypeUserActivity, UserName: "Sam"}, "User Activity: Sam"},
		{"test ignores caller subject", Request{Type: TypeTest, Subject: "custom"}, "Test Email from Stockroom"},
		{"default uses caller subject", Request{Type: "weekly_digest", Subject: "Digest"}, "Digest"},
		{"default fallback", Request{Type: ""}, "Notification from Stockroom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Render(tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, msg.Subject)
		})
	}
}

func TestRenderEscapesFields(t *testing.T) {
	msg, err := Render(Request{Type: TypeTechLowStock, ItemName: "<script>x</script>", TechEmail: "t@example.com"})
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
	assert.Contains(t, msg.HTML, "t@example.com")
}

func TestFunctionClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.To == "bad@example.com" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Failed to send email","message":"boom"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(Result{Success: true, Message: "Email sent successfully", Type: req.Type, Recipient: req.To})
	}))
	defer srv.Close()

	c := NewFunctionClient(srv.URL, "", 0)
	res, err := c.Send(context.Background(), Request{Type: TypeTest, To: "ok@example.com"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ok@example.com", res.Recipient)

	_, err = c.Send(context.Background(), Request{Type: TypeTest, To: "bad@example.com"})
	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, http.StatusInternalServerError, de.Status)
}
