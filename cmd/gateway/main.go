// Command gateway is the process entry point: it loads configuration,
// wires every component (blocklist, hop/frequency counters, robots
// refresher, edge classifier, markov corpus/generator, model adapter,
// reputation client, alert sinks, action service, escalation engine,
// tarpit service) and the reverse proxy, then serves the router with a
// graceful shutdown. Structured the way the teacher's cmd/protector/main.go
// does its startup/shutdown sequencing, generalized onto this system's
// component graph instead of the rate-limiter/anomaly-detector one.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/action"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/alert"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/blocklist"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/config"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/edge"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/escalation"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/fingerprint"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/frequency"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/hopcount"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/httpclient"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/httpserver"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/identity"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/markov"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/reputation"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/robots"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/tarpit"
)

// MakeReverseProxy builds the reverse proxy to the protected backend,
// stamping the standard X-Forwarded-* headers before handing the request
// off so the backend can recover the original client.
func MakeReverseProxy(target string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	rp := httputil.NewSingleHostReverseProxy(u)

	orig := rp.Director
	rp.Director = func(req *http.Request) {
		origHost := req.Host
		origProto := "http"
		if req.TLS != nil {
			origProto = "https"
		}
		if v := req.Header.Get("X-Forwarded-Proto"); v != "" {
			origProto = v
		}

		client := req.RemoteAddr
		if host, _, err := net.SplitHostPort(client); err == nil && host != "" {
			client = host
		}
		xff := req.Header.Get("X-Forwarded-For")

		orig(req)

		if xff == "" {
			req.Header.Set("X-Forwarded-For", client)
		} else {
			req.Header.Set("X-Forwarded-For", xff+", "+client)
		}
		req.Header.Set("X-Forwarded-Host", origHost)
		req.Header.Set("X-Forwarded-Proto", origProto)
	}

	rp.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, _ error) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"bad_gateway"}` + "\n"))
	}

	return rp, nil
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	switch strings.ToLower(getenv("LOG_LEVEL", "info")) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfgPath := os.Getenv("PROTECTOR_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/policies.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", cfgPath).Msg("load config")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	bl := blocklist.New(rdb)
	hops := hopcount.New(rdb, time.Duration(cfg.Tarpit.HopWindowSeconds)*time.Second, cfg.Tarpit.MaxHops)
	freq := frequency.New(rdb, time.Duration(cfg.Frequency.WindowSeconds)*time.Second)
	fp := fingerprint.New(rdb)

	robotsRefresher := robots.NewRefresher(cfg.Robots.Path, cfg.Robots.RefreshInterval)
	classifier := edge.New(bl, robotsRefresher).WithFingerprint(fp)

	var corpus markov.Corpus
	if cfg.Markov.DSN != "" {
		sqlCorpus, err := markov.Open(cfg.Markov.DSN)
		if err != nil {
			log.Error().Err(err).Msg("markov_corpus_open_failed_falling_back_to_canned_content")
		} else {
			corpus = sqlCorpus
		}
	}
	generator := markov.NewGenerator(corpus, markov.GeneratorConfig{
		MinWalkWords:  cfg.Markov.MinWalkWords,
		MaxWalkWords:  cfg.Markov.MaxWalkWords,
		TerminateProb: cfg.Markov.TerminateProb,
	})

	modelAdapter := model.New(model.Config{
		URI:         cfg.Model.URI,
		Timeout:     time.Duration(cfg.Model.TimeoutSeconds * float64(time.Second)),
		InitRetries: cfg.Model.InitRetries,
		InitDelay:   cfg.Model.InitDelay,
	})

	var repClient reputation.Client
	if cfg.Reputation.Enabled && cfg.Reputation.URL != "" {
		repClient = reputation.New(reputation.Config{
			URL:    cfg.Reputation.URL,
			APIKey: cfg.Reputation.APIKey,
		})
	}

	sharedClient := httpclient.New(httpclient.Config{
		MaxRetries:              cfg.HTTPClient.MaxRetries,
		RetryWaitMin:            time.Duration(cfg.HTTPClient.RetryWaitMinSeconds * float64(time.Second)),
		RetryWaitMax:            time.Duration(cfg.HTTPClient.RetryWaitMaxSeconds * float64(time.Second)),
		BreakerFailureThreshold: cfg.HTTPClient.BreakerFailureThreshold,
		BreakerResetTimeout:     time.Duration(cfg.HTTPClient.BreakerResetSeconds * float64(time.Second)),
		RequestTimeout:          time.Duration(cfg.HTTPClient.RequestTimeoutSeconds * float64(time.Second)),
	})

	var sinks []alert.Sink
	for _, sc := range cfg.Alerts {
		sink, err := alert.Build(alert.SinkConfig{
			Kind:           sc.Kind,
			URL:            sc.URL,
			MinSeverity:    sc.MinSeverity,
			MailFrom:       sc.MailFrom,
			MailTo:         sc.MailTo,
			SendgridAPIKey: sc.SendgridAPIKey,
		}, sharedClient)
		if err != nil {
			log.Error().Err(err).Str("kind", sc.Kind).Msg("alert_sink_build_failed_skipping")
			continue
		}
		sinks = append(sinks, sink)
	}
	dispatcher := alert.NewDispatcher(sinks)

	actionSvc := action.New(action.Config{
		BlockTTL:                time.Duration(cfg.Blocklist.TTLSeconds) * time.Second,
		CommunityReportingOn:    cfg.CommunityReporting.Enabled,
		CommunityReportURL:      cfg.CommunityReporting.URL,
		CommunityReportMinScore: cfg.CommunityReporting.MinScore,
	}, bl, dispatcher, sharedClient)

	escalationEngine := escalation.New(escalation.Config{
		Workers:                cfg.Escalation.Workers,
		QueueSize:              cfg.Escalation.QueueSize,
		Threshold:              cfg.Escalation.Threshold,
		EventDeadline:          cfg.Escalation.EventDeadline,
		ModelTimeout:           time.Duration(cfg.Model.TimeoutSeconds * float64(time.Second)),
		ReputationEnabled:      cfg.Reputation.Enabled,
		ReputationMinMalicious: cfg.Reputation.MinMaliciousThreshold,
		ReputationBonus:        cfg.Reputation.Bonus,
	}, freq, modelAdapter, repClient, actionSvc).WithFingerprint(fp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	escalationEngine.Start(ctx)

	tarpitSvc := tarpit.New(tarpit.Config{
		SystemSeed:        cfg.SystemSeed,
		BlockTTL:          time.Duration(cfg.Blocklist.TTLSeconds) * time.Second,
		MinDelay:          time.Duration(cfg.Tarpit.MinDelaySeconds * float64(time.Second)),
		MaxDelay:          time.Duration(cfg.Tarpit.MaxDelaySeconds * float64(time.Second)),
		LabyrinthFraction: cfg.Tarpit.LabyrinthFraction,
		LabyrinthDepth:    cfg.Tarpit.LabyrinthDepth,
		FingerprintScript: cfg.Tarpit.FingerprintScript,
	}, hops, bl, generator, escalationEngine).WithFingerprint(fp)

	proxy, err := MakeReverseProxy(cfg.BackendURL)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.BackendURL).Msg("invalid backend URL")
	}

	router, cleanup := httpserver.NewRouter(httpserver.RouterDeps{
		Classifier:  classifier,
		Tarpit:      tarpitSvc,
		Escalation:  escalationEngine,
		Action:      actionSvc,
		Blocklist:   bl,
		Robots:      robotsRefresher,
		IDSource:    identity.ParseSource(os.Getenv("CLIENT_IDENTITY_SOURCE")),
		ProxyPrefix: cfg.ProxyPrefix,
	}, proxy)

	httpserver.EnableDrainFlag(true)

	log.Info().
		Str("addr", cfg.Server.Addr).
		Str("backend", cfg.BackendURL).
		Str("config", cfgPath).
		Str("log_level", zerolog.GlobalLevel().String()).
		Msg("ai-scraping-defense gateway starting")

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer pingCancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis not reachable yet")
	} else {
		log.Info().Msg("redis reachable")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutdown requested; draining")

	httpserver.SetDraining(true)

	shCtx, shCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown did not complete in time; forcing close")
		_ = srv.Close()
	} else {
		log.Info().Msg("http server shut down cleanly")
	}

	cancel() // stop escalation workers
	cleanup()

	if corpus != nil {
		_ = corpus.Close()
	}
	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close")
	} else {
		log.Info().Msg("redis closed")
	}

	log.Info().Msg("ai-scraping-defense gateway exited")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
