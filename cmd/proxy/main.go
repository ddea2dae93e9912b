package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"keypool-gateway/middleware/keypool"
	"keypool-gateway/middleware/keypool/domain"
	"keypool-gateway/middleware/keypool/infra"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	target, err := url.Parse(cfg.targetURL)
	if err != nil {
		log.Fatalf("invalid TARGET_API_URL: %v", err)
	}

	selector, err := infra.NewRoundRobin(cfg.apiKeys)
	if err != nil {
		log.Fatalf("keypool error: %v", err)
	}

	var admitter domain.Admitter
	switch cfg.rateAlgo {
	case "fixed":
		admitter = infra.NewWindowStore(cfg.apiKeys, cfg.rateLimit, cfg.rateWindow)
	case "bucket":
		admitter = infra.NewBucketStore(cfg.apiKeys, cfg.rateLimit, cfg.rateWindow)
	default:
		log.Fatalf("invalid RATE_ALGO: %q (use fixed or bucket)", cfg.rateAlgo)
	}

	var statsStore domain.StatsStore
	if cfg.statsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Fatalf("redis stats ping error: %v", err)
		}

		statsStore = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
			infra.WithStatsTrackKeys(cfg.statsTrackKeys),
		)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	transport := &http.Transport{
		ResponseHeaderTimeout: cfg.upstreamTimeout,
	}
	proxy := keypool.NewReverseProxy(target, transport, log.Printf)

	queryParam := ""
	if cfg.keyInject == "query" {
		queryParam = cfg.keyQueryParam
	}

	h := http.Handler(proxy)
	h = keypool.Middleware(keypool.Options{
		Selector:         selector,
		Admitter:         admitter,
		Stats:            statsStore,
		InjectQueryParam: queryParam,
		RejectStatus:     http.StatusTooManyRequests,
		RetryAfter:       cfg.retryAfter,
		AddPoolHeaders:   cfg.addHeaders,
		MaxInFlight:      cfg.concurrencyMax,
		AcquireTimeout:   cfg.concurrencyTimeout,
	})(h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.upstreamTimeout + 30*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	keyIDs := make([]string, len(cfg.apiKeys))
	for i, k := range cfg.apiKeys {
		keyIDs[i] = domain.Key(k).ID()
	}
	log.Printf("proxy listening on %s -> %s", cfg.listenAddr, target)
	log.Printf("keypool: keys=%d ids=%s algo=%s limit=%d window=%s inject=%s", len(cfg.apiKeys), strings.Join(keyIDs, ","), cfg.rateAlgo, cfg.rateLimit, cfg.rateWindow, cfg.keyInject)
	log.Printf("stats: enabled=%v redisAddr=%q bucket=%q ttl=%s trackKeys=%v", cfg.statsEnabled, cfg.statsRedisAddr, cfg.statsBucket, cfg.statsTTL, cfg.statsTrackKeys)
	log.Printf("concurrency: max=%d acquireTimeout=%s", cfg.concurrencyMax, cfg.concurrencyTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

type config struct {
	listenAddr string
	apiKeys    []string
	targetURL  string

	rateLimit  int
	rateWindow time.Duration
	rateAlgo   string

	keyInject     string
	keyQueryParam string

	retryAfter time.Duration
	addHeaders bool

	concurrencyMax     int
	concurrencyTimeout time.Duration
	upstreamTimeout    time.Duration

	statsEnabled       bool
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsPrefix        string
	statsTTL           time.Duration
	statsBucket        string
	statsTrackKeys     bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.apiKeys = splitKeys(os.Getenv("API_KEYS"))
	cfg.targetURL = os.Getenv("TARGET_API_URL")
	cfg.rateLimit = getenvIntDefault("RATE_LIMIT", 15)
	cfg.rateWindow = getenvDurationDefault("RATE_WINDOW", 60*time.Second)
	cfg.rateAlgo = getenvDefault("RATE_ALGO", "fixed")
	cfg.keyInject = getenvDefault("KEY_INJECT", "header")
	cfg.keyQueryParam = getenvDefault("KEY_QUERY_PARAM", "key")
	// RETRY_AFTER=0 deixa o Retry-After ser estimado pela janela mais próxima
	cfg.retryAfter = getenvDurationDefault("RETRY_AFTER", 0)
	cfg.addHeaders = getenvBoolDefault("ADD_KEYPOOL_HEADERS", false)
	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)
	cfg.upstreamTimeout = getenvDurationDefault("UPSTREAM_TIMEOUT", 180*time.Second)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsRedisAddr = getenvDefault("STATS_REDIS_ADDR", "")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.statsRedisDB = getenvIntDefault("STATS_REDIS_DB", 0)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "keypool:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")
	cfg.statsTrackKeys = getenvBoolDefault("STATS_TRACK_KEYS", false)

	if len(cfg.apiKeys) == 0 {
		return config{}, errors.New("API_KEYS is required (semicolon-separated, at least one key)")
	}
	if cfg.targetURL == "" {
		return config{}, errors.New("TARGET_API_URL is required")
	}
	if cfg.rateLimit <= 0 {
		return config{}, errors.New("RATE_LIMIT must be > 0")
	}
	if cfg.rateWindow <= 0 {
		return config{}, errors.New("RATE_WINDOW must be > 0")
	}
	if cfg.keyInject != "header" && cfg.keyInject != "query" {
		return config{}, errors.New("KEY_INJECT must be header or query")
	}
	if cfg.keyInject == "query" && strings.TrimSpace(cfg.keyQueryParam) == "" {
		return config{}, errors.New("KEY_QUERY_PARAM is required when KEY_INJECT=query")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.statsEnabled && strings.TrimSpace(cfg.statsRedisAddr) == "" {
		return config{}, errors.New("STATS_REDIS_ADDR is required when STATS_ENABLED=true")
	}
	return cfg, nil
}

// splitKeys quebra API_KEYS por ';' e descarta entradas vazias.
func splitKeys(raw string) []string {
	parts := strings.Split(raw, ";")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if k := strings.TrimSpace(p); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
