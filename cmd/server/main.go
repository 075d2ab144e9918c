package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/softcodex/go-oidc-relay/audit"
	"github.com/softcodex/go-oidc-relay/flow"
	"github.com/softcodex/go-oidc-relay/flow/flowsession"
	"github.com/softcodex/go-oidc-relay/internal/config"
	"github.com/softcodex/go-oidc-relay/internal/metrics"
	"github.com/softcodex/go-oidc-relay/mailrelay"
	"github.com/softcodex/go-oidc-relay/provider"
	"github.com/softcodex/go-oidc-relay/server"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg := config.New()
	displayAppname(cfg.GetAppName())

	redisClient, err := newRedisClient(cfg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	sessions := newSessionRepo(cfg, redisClient)

	sink, closeSink, err := newAuditSink(cfg)
	if err != nil {
		return fmt.Errorf("audit sink: %w", err)
	}
	defer closeSink()

	controller, err := flow.NewController(
		cfg.GetClientID(),
		cfg.GetClientSecret(),
		cfg.GetLoginHost(),
		sessions,
		providerFactory(cfg),
	)
	if err != nil {
		return fmt.Errorf("flow controller: %w", err)
	}

	srv, err := server.New(cfg, server.Deps{
		Flow:    controller,
		Mail:    mailrelay.New(mailrelay.WithHTTPClient(&http.Client{Timeout: cfg.GetUpstreamTimeout()})),
		Audit:   sink,
		Metrics: metrics.New(prometheus.DefaultRegisterer),
		Redis:   redisClient,
	})
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: cfg.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// newRedisClient returns nil when no REDIS_URL is configured.
func newRedisClient(cfg config.Config) (*goredis.Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, nil
	}

	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func newSessionRepo(cfg config.Config, redisClient *goredis.Client) flowsession.Repo {
	if redisClient != nil {
		return flowsession.NewRedisRepo(redisClient, cfg.GetSessionTTL())
	}
	log.Printf("REDIS_URL not set, using in-memory session store (single instance only)\n")
	return flowsession.NewInMemoryRepo()
}

func newAuditSink(cfg config.Config) (audit.Sink, func(), error) {
	dsn := cfg.GetAuditDSN()
	if dsn == "" {
		log.Printf("AUDIT_DATABASE_URL not set, audit records stay in memory\n")
		return audit.NewMemorySink(), func() {}, nil
	}

	sink, err := audit.NewPostgresSink(dsn)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sink.EnsureSchema(ctx); err != nil {
		sink.Close()
		return nil, nil, err
	}
	return sink, func() { sink.Close() }, nil
}

// providerFactory builds a fresh provider client from the configuration stored
// with each flow session.
func providerFactory(cfg config.Config) flow.ClientFactory {
	httpClient := &http.Client{Timeout: cfg.GetUpstreamTimeout()}
	verifyIDToken := cfg.GetVerifyIDToken()

	return func(cc flowsession.ClientConfig, redirectURI string) flow.ProviderClient {
		options := []provider.Option{provider.WithHTTPClient(httpClient)}
		if verifyIDToken {
			options = append(options, provider.WithIDTokenVerification())
		}
		return provider.New(provider.Config{
			ClientID:     cc.ClientID,
			ClientSecret: cc.ClientSecret,
			TenantID:     cc.TenantID,
			RedirectURI:  redirectURI,
		}, options...)
	}
}

func listenAndServe(httpServer *http.Server) error {
	log.Printf("Server listening on %s\n", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
