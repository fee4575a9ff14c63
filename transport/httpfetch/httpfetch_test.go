package httpfetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Fetcher_PostForm_SendsBodyAndContentType(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("assoc_type:HMAC-SHA1\n"))
	}))
	t.Cleanup(srv.Close)

	f := New(5*time.Second, "")
	result, err := f.PostForm(context.Background(), srv.URL, []byte("mode=associate"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "assoc_type:HMAC-SHA1\n", string(result.Body))
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "mode=associate", string(gotBody))
}

func Test_Fetcher_PostForm_PropagatesTransportError(t *testing.T) {
	f := New(time.Millisecond, "")
	_, err := f.PostForm(context.Background(), "http://127.0.0.1:1/nowhere", []byte("x"))
	assert.Error(t, err)
}
