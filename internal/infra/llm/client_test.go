package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/softscan/internal/core/domain"
)

func completionBody(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	require.NoError(t, err)
	return body
}

// newTestClient returns a client pointed at url whose backoff sleeps are
// recorded instead of taken.
func newTestClient(url string, delay time.Duration) (*Client, *[]time.Duration) {
	c := NewClient(Config{URL: url, RetryDelay: delay, MaxRetries: 3, Timeout: 2 * time.Second})
	sleeps := &[]time.Duration{}
	c.sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return c, sleeps
}

func TestClient_Classify_SendsExpectedRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sonar", body["model"])
		temp, ok := body["temperature"]
		assert.True(t, ok, "temperature must be sent")
		assert.Equal(t, float64(0), temp)

		msgs := body["messages"].([]any)
		require.Len(t, msgs, 1)
		msg := msgs[0].(map[string]any)
		assert.Equal(t, "user", msg["role"])
		assert.Contains(t, msg["content"], "'openssl'")

		_, _ = w.Write(completionBody(t, `{"safety":"SAFE","rca":""}`))
	}))
	defer server.Close()

	c, sleeps := newTestClient(server.URL, time.Second)
	v := c.Classify(context.Background(), "openssl", "secret-key")

	assert.Equal(t, domain.Verdict{Safety: domain.SafetySafe, RCA: ""}, v)
	assert.Empty(t, *sleeps)
}

func TestClient_Classify_RetriesRateLimitWithLinearBackoff(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write(completionBody(t, `{"safety":"HARMFUL","rca":"ships a cryptominer"}`))
	}))
	defer server.Close()

	delay := 50 * time.Millisecond
	c, sleeps := newTestClient(server.URL, delay)
	v := c.Classify(context.Background(), "badapp", "k")

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{delay * 1, delay * 2}, *sleeps)
	assert.Equal(t, domain.SafetyHarmful, v.Safety)
	assert.Equal(t, "ships a cryptominer", v.RCA)

	stats := c.Monitor.GetStats()
	assert.Equal(t, 2, stats.ThrottleCount429)
	assert.Equal(t, 1, stats.Successes)
	assert.Equal(t, "1", stats.LastRetryAfter)
}

func TestClient_Classify_TransportFailuresExhaustRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // every dial now fails

	c, sleeps := newTestClient(url, 10*time.Millisecond)
	v := c.Classify(context.Background(), "curl", "k")

	assert.Equal(t, domain.UnknownVerdict(domain.RCAMaxRetries), v)
	assert.Equal(t, 3, c.Monitor.GetStats().TransportFailures)
	// two backoffs between three attempts, none after the last one
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *sleeps)
}

func TestClient_Classify_RateLimitExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c, _ := newTestClient(server.URL, time.Millisecond)
	v := c.Classify(context.Background(), "vim", "k")

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, domain.UnknownVerdict(domain.RCAMaxRetries), v)
}

func TestClient_Classify_ServerErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c, sleeps := newTestClient(server.URL, time.Second)
	v := c.Classify(context.Background(), "nginx", "k")

	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, *sleeps)
	assert.Equal(t, domain.UnknownVerdict(domain.RCAFetchError), v)

	stats := c.Monitor.GetStats()
	assert.Equal(t, 1, stats.HTTPErrors)
	assert.Equal(t, http.StatusInternalServerError, stats.LastHTTPStatus)
}

func TestClient_Classify_MalformedContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(completionBody(t, "I think it is safe."))
	}))
	defer server.Close()

	c, _ := newTestClient(server.URL, time.Second)
	v := c.Classify(context.Background(), "bash", "k")

	assert.Equal(t, domain.UnknownVerdict(domain.RCAParseFailure), v)
}

func TestClient_Classify_RateLimiterPacesAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(completionBody(t, `{"safety":"SAFE","rca":""}`))
	}))
	defer server.Close()

	c := NewClient(Config{URL: server.URL, RateLimitRPS: 20, RateLimitBurst: 1})
	require.NotNil(t, c.limiter)

	start := time.Now()
	for i := 0; i < 3; i++ {
		assert.Equal(t, domain.SafetySafe, c.Classify(context.Background(), "pkg", "k").Safety)
	}
	// burst 1 at 20 rps: the 2nd and 3rd calls wait ~50ms each
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestNewClient_AppliesDefaults(t *testing.T) {
	c := NewClient(Config{})
	cfg := c.Config()

	assert.Equal(t, DefaultURL, cfg.URL)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Nil(t, c.limiter)
}
