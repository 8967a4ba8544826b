package httpmw

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelquota/pkg/limiter"
)

func headerIdentity(r *http.Request) (string, limiter.ResourceClass) {
	return r.Header.Get("X-User-ID"), limiter.ResourceClass(r.Header.Get("X-Resource-Class"))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

func newLimiter(t *testing.T, ceiling int64) *limiter.Limiter {
	t.Helper()
	cfg := limiter.DefaultConfig()
	cfg.Windows["GPT_4"] = time.Minute
	cfg.Ceilings["GPT_4"] = map[limiter.Tier]int64{limiter.TierFree: ceiling}
	l, err := limiter.New(limiter.NewMemoryStore(), nil, cfg)
	require.NoError(t, err)
	return l
}

func doRequest(h http.Handler, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
	req.Header.Set("X-User-ID", user)
	req.Header.Set("X-Resource-Class", "gpt-4")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimit_AllowsUnderBudget(t *testing.T) {
	h := RateLimit(newLimiter(t, 2), headerIdentity)(okHandler())

	rr := doRequest(h, "user_1")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestRateLimit_DeniesWith429(t *testing.T) {
	h := RateLimit(newLimiter(t, 1), headerIdentity)(okHandler())

	require.Equal(t, http.StatusOK, doRequest(h, "user_1").Code)

	rr := doRequest(h, "user_1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	var body DeniedBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, int64(0), body.Remaining)
	assert.Positive(t, body.TimeRemainingMs)
}

func TestRateLimit_MissingUserIs400(t *testing.T) {
	h := RateLimit(newLimiter(t, 1), headerIdentity)(okHandler())

	rr := doRequest(h, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type downStore struct{}

func (downStore) Window(ctx context.Context, key string) (time.Time, int64, error) {
	return time.Time{}, 0, limiter.ErrStoreUnavailable
}
func (downStore) Append(ctx context.Context, key string, at time.Time) error {
	return limiter.ErrStoreUnavailable
}
func (downStore) Restart(ctx context.Context, key string, at time.Time, ttl time.Duration) error {
	return limiter.ErrStoreUnavailable
}
func (downStore) Remove(ctx context.Context, key string) error {
	return limiter.ErrStoreUnavailable
}

func TestRateLimit_FailPolicy(t *testing.T) {
	l, err := limiter.New(downStore{}, nil, limiter.DefaultConfig())
	require.NoError(t, err)

	t.Run("ClosedByDefault", func(t *testing.T) {
		h := RateLimit(l, headerIdentity)(okHandler())
		assert.Equal(t, http.StatusServiceUnavailable, doRequest(h, "user_1").Code)
	})

	t.Run("Open", func(t *testing.T) {
		h := RateLimit(l, headerIdentity, WithFailOpen())(okHandler())
		assert.Equal(t, http.StatusOK, doRequest(h, "user_1").Code)
	})
}

func TestResetHandler(t *testing.T) {
	l := newLimiter(t, 1)
	protected := RateLimit(l, headerIdentity)(okHandler())
	reset := ResetHandler(l, headerIdentity)

	require.Equal(t, http.StatusOK, doRequest(protected, "user_1").Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(protected, "user_1").Code)

	rr := doRequest(reset, "user_1")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	assert.Equal(t, http.StatusOK, doRequest(protected, "user_1").Code)
}
