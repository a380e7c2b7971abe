// zcrawl crawls the Zcash peer-to-peer network, maintaining a Known-Network
// graph by periodically probing candidate addresses through a synthetic
// peer, and exposing the result over JSON-RPC.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/runziggurat/zcash/crawler"
	"github.com/runziggurat/zcash/log"
	"github.com/runziggurat/zcash/metrics"
	"github.com/runziggurat/zcash/p2p"
	"github.com/runziggurat/zcash/rpcserver"
	"github.com/runziggurat/zcash/wire"
)

const (
	defaultUserAgent   = "/zcrawl:0.1/"
	defaultVersion     = 170100
	defaultStartHeight = 0
	shutdownGrace      = 10 * time.Second
	metricsLogFile     = "crawler-log.txt"
)

var (
	crawlIntervalFlag = cli.DurationFlag{
		Name:  "crawl-interval, c",
		Usage: "time between crawl ticks",
		Value: crawler.DefaultCrawlInterval,
	}
	seedAddrsFlag = cli.StringFlag{
		Name:  "seed-addrs, s",
		Usage: "comma-separated list of host:port seed addresses",
	}
	rpcAddrFlag = cli.StringFlag{
		Name:  "rpc-addr, r",
		Usage: "address to serve JSON-RPC and websocket telemetry on (disabled if empty)",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "zcrawl"
	app.Usage = "crawl the Zcash peer-to-peer network and report topology metrics"
	app.Flags = []cli.Flag{crawlIntervalFlag, seedAddrsFlag, rpcAddrFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "zcrawl:", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	logFile, err := os.Create(metricsLogFile)
	if err != nil {
		return fmt.Errorf("opening %s: %w", metricsLogFile, err)
	}
	defer logFile.Close()

	logger := log.New(log.MultiHandler{
		log.NewTerminalHandler(os.Stderr),
		log.NewPlainHandler(logFile),
	}, log.LvlInfo)
	log.SetRoot(logger)

	seeds := splitSeedAddrs(ctx.String(seedAddrsFlag.Name))
	if len(seeds) == 0 {
		return fmt.Errorf("at least one -s/--seed-addrs address is required")
	}

	rpcAddr := ctx.String(rpcAddrFlag.Name)

	var hub *rpcserver.Hub
	if rpcAddr != "" {
		hub = rpcserver.NewHub()
	}

	cr, err := crawler.New(crawler.Config{
		SeedAddrs:     seeds,
		CrawlInterval: ctx.Duration(crawlIntervalFlag.Name),
		Magic:         wire.MagicMainnet,
		Version:       defaultVersion,
		UserAgent:     defaultUserAgent,
		StartHeight:   defaultStartHeight,
		Policy:        p2p.DefaultPolicy(),
		Observer:      observerOrNil(hub),
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("starting crawler: %w", err)
	}

	var rpc *rpcserver.Server
	if hub != nil {
		rpc = rpcserver.NewWithHub(cr.Network(), hub, logger)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var rpcDone chan error
	if rpc != nil {
		rpcDone = make(chan error, 1)
		go func() { rpcDone <- rpc.Serve(runCtx, rpcAddr) }()
		logger.Info("rpc server listening", "addr", rpcAddr)
	}

	crawlDone := make(chan struct{})
	go func() { cr.Run(runCtx); close(crawlDone) }()
	logger.Info("crawler started", "seeds", len(seeds), "interval", ctx.Duration(crawlIntervalFlag.Name))

	<-sigCh
	logger.Info("shutdown signal received, draining in-flight probes")

	cancel()
	cr.Shutdown(shutdownGrace)
	<-crawlDone
	if rpcDone != nil {
		<-rpcDone
	}

	return dumpMetrics(cr, logFile)
}

func dumpMetrics(cr *crawler.Crawler, logFile *os.File) error {
	report := metrics.Compute(cr.Network())
	if err := metrics.WriteReport(logFile, report); err != nil {
		return fmt.Errorf("writing final metrics: %w", err)
	}
	return nil
}

// observerOrNil returns hub as a crawler.ProbeObserver, or a true nil
// interface when hub is nil — assigning a nil *rpcserver.Hub directly would
// produce a non-nil interface holding a nil pointer.
func observerOrNil(hub *rpcserver.Hub) crawler.ProbeObserver {
	if hub == nil {
		return nil
	}
	return hub
}

func splitSeedAddrs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			addrs = append(addrs, p)
		}
	}
	return addrs
}
