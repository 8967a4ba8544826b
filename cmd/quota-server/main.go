// quota-server exposes the usage limiter over HTTP: admit and peek
// endpoints for upstream services, an administrative reset, and Prometheus
// metrics. Budget settings come from the environment (optionally via .env).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"modelquota/pkg/httpmw"
	"modelquota/pkg/limiter"
	"modelquota/pkg/metrics"
)

type decisionBody struct {
	Allowed         bool  `json:"allowed"`
	Remaining       int64 `json:"remaining"`
	TimeRemainingMs int64 `json:"timeRemainingMs,omitempty"`
}

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := limiter.LoadConfig(os.Environ())
	if err != nil {
		log.Fatal("invalid quota configuration", zap.Error(err))
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	store, err := limiter.NewRedisStore(redis.NewClient(&redis.Options{Addr: redisAddr}))
	if err != nil {
		log.Fatal("redis unreachable", zap.String("addr", redisAddr), zap.Error(err))
	}

	tiers := limiter.NewStaticTierResolver(splitList(os.Getenv("QUOTA_PREMIUM_USERS")))
	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)

	l, err := limiter.New(store, tiers, cfg,
		limiter.WithTimeout(2*time.Second),
		limiter.WithRecorder(recorder),
		limiter.WithLogger(log),
	)
	if err != nil {
		log.Fatal("limiter construction failed", zap.Error(err))
	}

	identity := func(r *http.Request) (string, limiter.ResourceClass) {
		return r.Header.Get("X-User-ID"), limiter.ResourceClass(chi.URLParam(r, "class"))
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Post("/v1/admit/{class}", decide(l.Admit, identity))
	r.Get("/v1/peek/{class}", decide(l.Peek, identity))
	r.Method(http.MethodDelete, "/v1/quota/{class}", httpmw.ResetHandler(l, identity))
	r.Handle("/metrics", promhttp.Handler())

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Info("quota server listening", zap.String("addr", addr), zap.String("redis", redisAddr))
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

type decisionFunc func(ctx context.Context, userID string, class limiter.ResourceClass) (limiter.Decision, error)

func decide(op decisionFunc, identity httpmw.IdentityFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, class := identity(r)
		dec, err := op(r.Context(), userID, class)
		if err != nil {
			if errors.Is(err, limiter.ErrInvalidInput) {
				http.Error(w, "missing user or resource class", http.StatusBadRequest)
				return
			}
			http.Error(w, "quota check unavailable", http.StatusServiceUnavailable)
			return
		}
		status := http.StatusOK
		if !dec.Allowed {
			status = http.StatusTooManyRequests
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(decisionBody{
			Allowed:         dec.Allowed,
			Remaining:       dec.Remaining,
			TimeRemainingMs: dec.RetryAfter.Milliseconds(),
		})
	}
}

// requestID tags each request so denials can be correlated across services.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
