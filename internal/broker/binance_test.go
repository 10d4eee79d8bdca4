package broker

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedRequestAppendsSignatureLast(t *testing.T) {
	var gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("X-MBX-APIKEY")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	b := NewBinanceFutures("test-key", "test-secret", true, time.Second)
	b.baseURL = srv.URL

	require.NoError(t, b.SetLeverage(context.Background(), "BTCUSDT", 5))
	assert.Equal(t, "test-key", gotKey)

	// The signature trails the signed payload; it is not sorted into the
	// encoded parameters.
	idx := strings.LastIndex(gotQuery, "&signature=")
	require.Positive(t, idx, "signature missing from query: %s", gotQuery)
	payload := gotQuery[:idx]
	sig := gotQuery[idx+len("&signature="):]
	assert.NotContains(t, payload, "signature=")
	assert.Contains(t, payload, "symbol=BTCUSDT")
	assert.Contains(t, payload, "timestamp=")

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte(payload))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), sig, "signature covers exactly the preceding payload")
}

func TestUnsignedRequestCarriesNoSignature(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"markPrice":"123.45"}`))
	}))
	defer srv.Close()

	b := NewBinanceFutures("test-key", "test-secret", true, time.Second)
	b.baseURL = srv.URL

	mark, err := b.MarkPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 123.45, mark)
	assert.NotContains(t, gotQuery, "signature=")
	assert.NotContains(t, gotQuery, "timestamp=")
}
