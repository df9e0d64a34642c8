package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/ryandielhenn/r2rmesh/discovery"
	"github.com/ryandielhenn/r2rmesh/internal/config"
	"github.com/ryandielhenn/r2rmesh/internal/telemetry"
	"github.com/ryandielhenn/r2rmesh/pkg/directory"
	"github.com/ryandielhenn/r2rmesh/pkg/node"
	"github.com/ryandielhenn/r2rmesh/pkg/router"
	"github.com/ryandielhenn/r2rmesh/pkg/transport"
)

var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("R2R_CONFIG"), "peer table / tunables YAML")
	waitStart := flag.Bool("wait-start", false, "discard inbound traffic until a START message arrives")
	start := flag.Bool("start", false, "broadcast START once communications are up")
	flag.Parse()

	// 1. Config and logger
	cfg, err := config.Load(*cfgPath)
	logger := newLogger(cfg.Debug)
	defer logger.Sync()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	telemetry.SetBuildInfo(version, gitSHA)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Peer table, from etcd when configured
	peers := cfg.Peers
	if len(cfg.Etcd) > 0 {
		cli, err := discovery.NewClient(cfg.Etcd)
		if err != nil {
			logger.Fatal("etcd client", zap.Error(err))
		}
		defer cli.Close()
		logger.Info("created etcd client", zap.Strings("endpoints", cli.Endpoints()))

		peers = bootstrapPeers(ctx, logger, cli, cfg)
	}

	// 3. Router over ZeroMQ
	rcfg := cfg.RouterConfig()
	rcfg.Logger = logger
	tr := transport.NewZMQ(ctx, transport.WithZMQLogger(logger.Named("zmq")))
	r := router.New(tr, rcfg)
	for _, p := range peers {
		if err := r.AddPeer(p, p.Name == cfg.Self); err != nil {
			logger.Fatal("add peer", zap.String("peer", p.Name), zap.Error(err))
		}
	}
	if *waitStart {
		r.WaitForStartSignal()
	}
	if err := r.EstablishCommunications(); err != nil {
		logger.Fatal("establish communications", zap.Error(err))
	}
	if *start {
		n, err := r.BroadcastStartSignal()
		if err != nil {
			logger.Fatal("broadcast start", zap.Error(err))
		}
		logger.Info("start signal sent", zap.Int("copies", n))
	}

	// 4. Local HTTP API
	n := node.NewNode(r, cfg.HTTPAddr, logger)
	srv := &http.Server{Addr: n.Addr(), Handler: n.Handler()}
	go func() {
		logger.Info("r2rmesh peer listening", zap.String("self", cfg.Self), zap.String("addr", n.Addr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := r.Close(); err != nil {
		logger.Warn("router close", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewExample()
	}
	return l
}

// bootstrapPeers registers this peer and waits for the rest of the mesh.
// The lease is revoked when ctx ends.
func bootstrapPeers(ctx context.Context, logger *zap.Logger, cli *clientv3.Client, cfg config.Config) []directory.Endpoint {
	self, _ := cfg.SelfEndpoint()
	if addr := os.Getenv("SELF_ADDR"); addr != "" {
		self.ClientAddr = node.NormalizeEndpoint(addr, "7000")
	}

	logger.Info("registering with etcd", zap.String("self", self.Name), zap.String("addr", self.ClientAddr))
	leaseID, cancel, err := discovery.RegisterPeer(cli, cfg.EtcdPrefix, self, 10, logger)
	if err != nil {
		logger.Fatal("register", zap.Error(err))
	}
	go func() {
		<-ctx.Done()
		cancel()
		_, _ = cli.Revoke(context.Background(), leaseID)
	}()

	want := cfg.ExpectPeers
	if want <= 0 {
		want = 1
	}
	waitCtx, waitCancel := context.WithTimeout(ctx, time.Minute)
	defer waitCancel()
	peers, err := discovery.WaitForPeers(waitCtx, cli, cfg.EtcdPrefix, want, 500*time.Millisecond)
	if err != nil {
		logger.Fatal("waiting for peers", zap.Int("want", want), zap.Error(err))
	}
	for _, p := range peers {
		logger.Info("bootstrap", zap.String("peer", p.Name), zap.String("addr", p.ClientAddr))
	}
	return peers
}
