package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"signal_trader/internal/models"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	mu          sync.Mutex
	tokens      []string
	issued      int
	invalidated int
}

func (f *fakeTokens) GetToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issued >= len(f.tokens) {
		return f.tokens[len(f.tokens)-1], nil
	}
	return f.tokens[f.issued], nil
}

func (f *fakeTokens) Invalidate(context.Context) {
	f.mu.Lock()
	f.invalidated++
	f.issued++
	f.mu.Unlock()
}

func newClient(t *testing.T, h http.HandlerFunc, tokens ...string) (*Client, *fakeTokens) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	if len(tokens) == 0 {
		tokens = []string{"tok"}
	}
	ft := &fakeTokens{tokens: tokens}
	return NewClient(srv.URL, time.Second, ft, NewAuthenticator(srv.URL, "user", "key", time.Second)), ft
}

func TestRetryOnceAfter401(t *testing.T) {
	var calls atomic.Int32
	c, ft := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"positions":[{"contractId":"CON.F.US.MES.M25","size":9}]}`)
	}, "stale", "fresh")

	size, err := c.PositionSize(context.Background(), 1, "CON.F.US.MES.M25")
	require.NoError(t, err)
	assert.Equal(t, 9, size)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, ft.invalidated)
}

func TestSecond401IsAuthError(t *testing.T) {
	var calls atomic.Int32
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}, "a", "b")

	_, err := c.SearchPositions(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindAuth))
	assert.Equal(t, int32(2), calls.Load(), "retried exactly once")
}

func TestPlaceOrder(t *testing.T) {
	var got models.OrderRequest
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Order/place", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(body, &got))
		_, _ = io.WriteString(w, `{"success":true,"orderId":42}`)
	})

	res, err := c.PlaceOrder(context.Background(), models.OrderRequest{
		AccountID: 7, ContractID: "CON.F.US.MES.M25", Type: 2, Side: 0, Size: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.OrderID)
	assert.Equal(t, 2, got.Size)
	assert.Nil(t, got.TrailPrice)
}

func TestPlaceOrderRejected(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"errorCode":2,"errorMessage":"insufficient margin"}`)
	})
	_, err := c.PlaceOrder(context.Background(), models.OrderRequest{AccountID: 7, Size: 1})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindBrokerRejection))
	assert.Contains(t, err.Error(), "insufficient margin")
}

func TestCloseRequiresSuccessInBody(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		ok     bool
	}{
		{"confirmed", 200, `{"success":true,"errorCode":0}`, true},
		{"not confirmed", 200, `{"success":false,"errorCode":1}`, false},
		{"plain text", 200, `ok`, false},
		{"bad status", 400, `{"success":true}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/Position/closeContract", r.URL.Path)
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			err := c.CloseFullPosition(context.Background(), 1, "CON.F.US.MES.M25")
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, models.IsKind(err, models.KindBrokerRejection))
			}
		})
	}
}

func TestPartialCloseSendsSize(t *testing.T) {
	var size int
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Position/partialCloseContract", r.URL.Path)
		var in struct {
			Size int `json:"size"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(body, &in)
		size = in.Size
		_, _ = io.WriteString(w, `{"success":true}`)
	})
	require.NoError(t, c.ClosePartialPosition(context.Background(), 1, "CON.F.US.MES.M25", 3))
	assert.Equal(t, 3, size)

	err := c.ClosePartialPosition(context.Background(), 1, "CON.F.US.MES.M25", 0)
	assert.True(t, models.IsKind(err, models.KindValidation))
}

func TestContractDetailsShapes(t *testing.T) {
	for _, body := range []string{
		`{"id":"CON.F.US.MES.M25","lastPrice":5000.25,"tickSize":0.25}`,
		`{"contract":{"id":"CON.F.US.MES.M25","lastPrice":5000.25,"tickSize":0.25},"success":true}`,
	} {
		c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "CON.F.US.MES.M25", r.URL.Query().Get("id"))
			_, _ = io.WriteString(w, body)
		})
		d, err := c.GetContractDetails(context.Background(), "CON.F.US.MES.M25")
		require.NoError(t, err)
		assert.Equal(t, 5000.25, d.LastPrice)
		assert.Equal(t, 0.25, d.TickSize)
	}
}

func TestTimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 50*time.Millisecond, &fakeTokens{tokens: []string{"tok"}}, nil)
	_, err := c.SearchOpenOrders(context.Background(), 1, "CON.F.US.MES.M25")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindNetwork))
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Auth/loginKey", r.URL.Path)
		var in map[string]string
		body, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(body, &in)
		if in["userName"] == "user" && in["apiKey"] == "key" {
			_, _ = io.WriteString(w, `{"token":"jwt","success":true}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":null,"success":false,"errorMessage":"bad key"}`)
	}))
	defer srv.Close()

	tok, err := NewAuthenticator(srv.URL, "user", "key", time.Second).Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jwt", tok)

	_, err = NewAuthenticator(srv.URL, "user", "wrong", time.Second).Login(context.Background())
	assert.True(t, models.IsKind(err, models.KindAuth))
}
