package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"magnos-hutch/backend/internal/config"
	"magnos-hutch/backend/internal/db"
	metricsservice "magnos-hutch/backend/internal/metrics/service"
	"magnos-hutch/backend/internal/server"
	"magnos-hutch/backend/internal/session/repository"
	sessionservice "magnos-hutch/backend/internal/session/service"
	"magnos-hutch/backend/internal/telemetry"
	otelsetup "magnos-hutch/backend/internal/telemetry/otel"
	"magnos-hutch/backend/internal/telemetry/producer"
)

const serviceName = "magnos-hutch-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	store := repository.NewPostgresStore(conn)
	meter := providers.MeterProvider.Meter("mh.ingest")
	ingest := sessionservice.NewIngestService(store, cfg.MaxBatchEvents, meter)
	daily := metricsservice.NewDailyService(store)
	hist := metricsservice.NewHistogramService(store)

	// Fan-out sink: Kafka when brokers are configured, OTel log records otherwise.
	var emitter telemetry.EventEmitter
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer := producer.NewKafkaProducer(brokers, cfg.KafkaTopic)
		if kafkaProducer != nil {
			defer kafkaProducer.Close()
			emitter = kafkaProducer
			log.Printf("event fan-out to kafka topic %s enabled", cfg.KafkaTopic)
		}
	}
	if emitter == nil {
		emitter = otelsetup.NewEventEmitter(providers.LoggerProvider)
	}

	router := server.NewRouter(server.Deps{
		Ingest:         ingest,
		Daily:          daily,
		Hist:           hist,
		DB:             conn,
		Emitter:        emitter,
		AllowedOrigins: cfg.CORSAllowedOriginsList(),
	})
	handler := otelhttp.NewHandler(router, "http.server",
		otelhttp.WithTracerProvider(providers.TracerProvider),
		otelhttp.WithMeterProvider(providers.MeterProvider),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("HTTP API listening on %s", cfg.HTTPAddr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server: %v", err)
	}

	// Let in-flight async event emits drain before providers shut down.
	time.Sleep(telemetry.ShutdownDrainDuration)
	log.Println("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
