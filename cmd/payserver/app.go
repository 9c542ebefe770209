package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/nkiryanov/payengine/internal/handlers"
	"github.com/nkiryanov/payengine/internal/ingress"
	"github.com/nkiryanov/payengine/internal/ingress/kafka"
	"github.com/nkiryanov/payengine/internal/logger"
	"github.com/nkiryanov/payengine/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/payengine/internal/service/batch"
	"github.com/nkiryanov/payengine/internal/storage"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger  logger.Logger
	service *batch.Service
	kafka   *kafkaFeed
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	var l logger.Logger
	if c.Environment == "dev" {
		l = logger.NewText(os.Stdout, c.LogLevel)
	} else {
		l = logger.NewJSON(os.Stdout, c.LogLevel)
	}

	// Shared stores: every batch and every Kafka stream multiplexes onto
	// the same account set
	accounts := storage.NewAccountStore()
	transactions := storage.NewTransactionStore()
	service := batch.NewService(accounts, transactions, l)

	tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager: %w", err)
	}

	mux := handlers.NewRouter(service, accounts, tokens, l)

	app := &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     l,
		service:    service,
	}

	if c.KafkaTopic != "" {
		app.kafka = &kafkaFeed{
			brokers:    c.KafkaBrokers,
			topic:      c.KafkaTopic,
			partitions: c.KafkaPartitions,
			shards:     c.Shards,
			service:    service,
			logger:     l,
		}
	}

	return app, nil
}

// Run starts the http server (and the Kafka feed when configured) and
// closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	if s.kafka != nil {
		go s.kafka.run(srvCtx)
	}

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}

// issueToken prints a signed service token for the configured caller name
func issueToken(c *Config) error {
	tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey})
	if err != nil {
		return err
	}

	token, expiresAt, err := tokens.Issue(c.IssueToken)
	if err != nil {
		return err
	}

	fmt.Printf("%s\nexpires at: %s\n", token, expiresAt.Format(time.RFC3339))
	return nil
}

// kafkaFeed consumes topic partitions as ordered transaction streams for as
// long as the server runs
type kafkaFeed struct {
	brokers    []string
	topic      string
	partitions int
	shards     int
	service    *batch.Service
	logger     logger.Logger
}

func (f *kafkaFeed) run(ctx context.Context) {
	sources := make([]ingress.Ingress, 0, f.partitions)
	for partition := range f.partitions {
		consumer, err := kafka.NewConsumer(f.brokers, f.topic, int32(partition))
		if err != nil {
			f.logger.Error("can't consume kafka partition", "partition", partition, "error", err)
			return
		}
		defer consumer.Close() // nolint:errcheck

		sources = append(sources, consumer)
	}

	f.logger.Info("Kafka feed started", "topic", f.topic, "partitions", f.partitions)

	report, err := f.service.Run(ctx, sources, batch.Options{Shards: f.shards})
	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		f.logger.Error("Kafka feed stopped", "error", err)
	case report != nil:
		f.logger.Info("Kafka feed stopped", "processed", report.Processed, "skipped", report.Skipped)
	}
}
