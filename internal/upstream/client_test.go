package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observation struct {
	provider, endpoint string
	status             int
	err                error
}

type fakeObserver struct{ seen []observation }

func (f *fakeObserver) ObserveUpstream(provider, endpoint string, _ time.Duration, status int, err error) {
	f.seen = append(f.seen, observation{provider, endpoint, status, err})
}

func TestJSONSendsHeadersQueryAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/things", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "7", r.URL.Query().Get("page"))
		assert.Equal(t, "secret", r.Header.Get("xi-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	obs := &fakeObserver{}
	c := New("test", srv.URL+"/", WithQuery("apiKey", "k"), WithHeader("xi-api-key", "secret"), WithObserver(obs))
	raw, err := c.JSON(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/v1/things",
		Query:  map[string][]string{"page": {"7"}},
		Body:   map[string]string{"a": "b"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(raw))
	require.Len(t, obs.seen, 1)
	assert.Equal(t, observation{"test", "/v1/things", 200, nil}, obs.seen[0])
}

func TestNon2xxBecomesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid event type"}`))
	}))
	defer srv.Close()

	obs := &fakeObserver{}
	c := New("calcom", srv.URL, WithObserver(obs))
	_, err := c.JSON(context.Background(), Request{Method: http.MethodGet, Path: "/v1/slots"})
	require.Error(t, err)

	var uerr *Error
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, 400, uerr.Status)
	assert.Equal(t, `{"message":"invalid event type"}`, uerr.Body)
	assert.Equal(t, `calcom request failed with status 400: {"message":"invalid event type"}`, err.Error())
	require.Len(t, obs.seen, 1)
	assert.Equal(t, 400, obs.seen[0].status)
}

func TestErrorBodyIsTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	_, err := New("p", srv.URL).JSON(context.Background(), Request{Method: http.MethodGet})
	var uerr *Error
	require.True(t, errors.As(err, &uerr))
	assert.Len(t, uerr.Body, maxErrorBody+3)
}

func TestErrorBodyTruncationKeepsRunesWhole(t *testing.T) {
	body := "a" + strings.Repeat("é", 2048)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	_, err := New("p", srv.URL).JSON(context.Background(), Request{Method: http.MethodGet})
	var uerr *Error
	require.True(t, errors.As(err, &uerr))
	assert.True(t, utf8.ValidString(uerr.Body))
	assert.NotContains(t, uerr.Body, "\uFFFD")
	assert.Equal(t, body[:maxErrorBody-1]+"...", uerr.Body)

	assert.Equal(t, "日...", truncate("日本", 4))
	assert.Equal(t, "...", truncate("日本", 2))
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New("elevenlabs", url).JSON(context.Background(), Request{Method: http.MethodGet, Path: "/v1/voices"})
	var uerr *Error
	require.True(t, errors.As(err, &uerr))
	assert.Zero(t, uerr.Status)
	assert.True(t, strings.HasPrefix(err.Error(), "elevenlabs request failed: "))
}

func TestTimeoutIsSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New("p", srv.URL, WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	_, err := c.JSON(context.Background(), Request{Method: http.MethodGet})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := New("p", srv.URL).JSON(context.Background(), Request{Method: http.MethodGet})
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestDecodeObject(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"id":999}`))
	require.NoError(t, err)
	assert.Equal(t, float64(999), obj["id"])

	for _, raw := range []string{`[1,2]`, `"x"`, `null`} {
		_, err := DecodeObject([]byte(raw))
		assert.ErrorIs(t, err, ErrUnexpectedShape, raw)
	}
}
