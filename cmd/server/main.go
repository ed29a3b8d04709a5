package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"keel/api/rest"
	"keel/api/ws"
	"keel/domain/book"
	"keel/infra/kafka"
	"keel/infra/outbox"
	"keel/jobs/broadcaster"
	"keel/service"
)

func main() {
	var (
		listenAddr   = flag.String("listen", ":8080", "HTTP listen address")
		symbol       = flag.String("symbol", "KEL-USD", "instrument symbol")
		tick         = flag.Int64("tick", 1, "minimum price increment, minor units")
		outboxDir    = flag.String("outbox-dir", "./outbox", "trade feed ledger directory")
		kafkaBrokers = flag.String("kafka-brokers", "", "comma-separated brokers; empty disables Kafka")
		tradeTopic   = flag.String("trade-topic", "keel.trades", "durable trade feed topic")
		depthTopic   = flag.String("depth-topic", "keel.depth", "lossy depth snapshot topic")
		feedInterval = flag.Duration("feed-interval", 250*time.Millisecond, "outbox drain cadence")
		debug        = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	logCfg := zap.NewProductionConfig()
	if *debug {
		logCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := logCfg.Build()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------- Infra ----------------

	ledger, err := outbox.Open(*outboxDir)
	if err != nil {
		log.Fatal("outbox init failed", zap.Error(err))
	}
	defer ledger.Close()

	seq, err := service.ResumeSeq(ledger)
	if err != nil {
		log.Fatal("sequencer resume failed", zap.Error(err))
	}

	var depthPub *kafka.Producer
	brokers := splitBrokers(*kafkaBrokers)
	if len(brokers) > 0 {
		depthPub = kafka.NewProducer(brokers, *depthTopic)
		defer depthPub.Close()
	}

	// ---------------- Domain ----------------

	bk := book.New(*symbol, *tick)

	// ---------------- Service ----------------

	var depthSink service.DepthPublisher
	if depthPub != nil {
		depthSink = depthPub
	}
	svc := service.New(bk, seq, ledger, depthSink, log.Named("service"))

	// ---------------- Background jobs ----------------

	if len(brokers) > 0 {
		bc, err := broadcaster.New(ledger, brokers, *tradeTopic, *feedInterval, log.Named("broadcaster"))
		if err != nil {
			log.Fatal("broadcaster init failed", zap.Error(err))
		}
		defer bc.Close()
		go bc.Run(ctx)
	}

	wsSrv := ws.NewServer(svc, log.Named("ws"))
	go wsSrv.Run(ctx)

	// ---------------- HTTP ----------------

	root := http.NewServeMux()
	wsSrv.Register(root)
	root.Handle("/", rest.NewServer(svc, log.Named("rest")).Handler())

	httpSrv := &http.Server{
		Addr:              *listenAddr,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info("keel engine running",
		zap.String("listen", *listenAddr),
		zap.String("symbol", *symbol),
		zap.Int64("tick", *tick),
		zap.Bool("kafka", len(brokers) > 0),
	)

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("http server exited", zap.Error(err))
	}
}

func splitBrokers(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
