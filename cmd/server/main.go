package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/pairpoint/server/internal/api"
	"github.com/pairpoint/server/internal/broker"
	"github.com/pairpoint/server/internal/config"
	"github.com/pairpoint/server/internal/database"
	"github.com/pairpoint/server/internal/stats"
)

const defaultSigningKey = "c2lnbmluZy1rZXktZm9yLWxvY2FsLWRldi1vbmx5LXJvdGF0ZQ=="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
	sessionLength  time.Duration
	decisionWindow time.Duration
	maxRoomSize    int
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.DurationVar(&sessionLength, "default-session-length", 3*time.Minute, "session length used when a ticket has no preference")
	flag.DurationVar(&decisionWindow, "decision-window", 15*time.Second, "time both sides have to submit a decision after a session ends")
	flag.IntVar(&maxRoomSize, "max-room-participants", 4, "maximum live room participants, owner included")
	flag.Parse()

	logger := log.New(os.Stderr, "[pairpoint] ", log.LstdFlags)

	brokerCfg := config.DefaultBrokerConfig()
	brokerCfg.DefaultSessionLength = sessionLength
	brokerCfg.DecisionWindow = decisionWindow
	brokerCfg.MaxRoomParticipants = maxRoomSize

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins, brokerCfg)
	if err != nil {
		logger.Fatal("config:", err)
	}

	ledger, err := database.NewPgLedgerRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	b, err := broker.NewBroker(logger, ledger, statsUpdater, cfg.Broker)
	if err != nil {
		logger.Fatal("new broker:", err)
	}

	srv := api.NewApp(mux, logger, b, ledger, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go b.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down broker...")
	if err := b.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("broker shutdown:", err)
	}

	logger.Println("shutdown complete")
}
