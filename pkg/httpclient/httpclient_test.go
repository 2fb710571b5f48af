package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/echo":
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"method":"` + r.Method + `","key":"` + r.Header.Get("X-Api-Key") + `","mint":"` + r.URL.Query().Get("mint") + `","body":` + string(body) + `}`))
		case "/v1/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("nope"))
		}
	}))
	defer server.Close()

	client, err := New(server.URL+"/v1", Config{Headers: map[string]string{"X-Api-Key": "k"}})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("post_json", func(t *testing.T) {
		resp, err := client.Post(ctx, "/echo", RequestOptions{Body: []byte(`{"id":1}`), Query: url.Values{"mint": {"abc"}}})
		require.NoError(t, err)
		var out struct {
			Method string         `json:"method"`
			Key    string         `json:"key"`
			Mint   string         `json:"mint"`
			Body   map[string]int `json:"body"`
		}
		require.NoError(t, resp.UnmarshalBody(&out))
		assert.Equal(t, http.MethodPost, out.Method)
		assert.Equal(t, "k", out.Key)
		assert.Equal(t, "abc", out.Mint)
		assert.Equal(t, 1, out.Body["id"])
	})

	t.Run("non_json_body", func(t *testing.T) {
		resp, err := client.Get(ctx, "/other", RequestOptions{})
		require.NoError(t, err)
		var out map[string]any
		assert.Error(t, resp.UnmarshalBody(&out))
	})

	t.Run("timeout", func(t *testing.T) {
		impatient, err := New(server.URL+"/v1", Config{Timeout: 50 * time.Millisecond})
		require.NoError(t, err)
		_, err = impatient.Get(ctx, "/slow", RequestOptions{})
		assert.ErrorIs(t, err, errs.Timeout)
	})

	t.Run("relative_base_url", func(t *testing.T) {
		_, err := New("localhost:8899")
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})
}

func TestURL(t *testing.T) {
	client, err := New("https://api.dexscreener.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://api.dexscreener.com/latest/dex/tokens/mint", client.URL("/latest/dex/tokens/mint", nil))
}
