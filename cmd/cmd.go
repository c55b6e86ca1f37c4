// Package cmd implements the imgopt command line and process startup.
package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/holaplex/imgopt/cdn"
	"github.com/holaplex/imgopt/config"
	"github.com/holaplex/imgopt/httpd"
	"github.com/holaplex/imgopt/kv"
	"github.com/holaplex/imgopt/lib/fshttp"
	"github.com/holaplex/imgopt/object"
	"github.com/holaplex/imgopt/twitter"
)

var configPath string

// Root is the main imgopt command.
var Root = &cobra.Command{
	Use:     "imgopt",
	Short:   "imgopt is an image transforming cache & proxy",
	Version: config.Version,
	RunE: func(_ *cobra.Command, _ []string) error {
		return run()
	},
}

func init() {
	def := os.Getenv("CONFIG_PATH")
	if def == "" {
		def = "./config.toml"
	}
	Root.Flags().StringVarP(&configPath, "config", "c", def, "path to the TOML config file")
}

func run() error {
	cfg := config.Load(configPath)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
	logrus.Infof("imgopt %s starting with %d origins", config.Version, len(cfg.Origins))

	// One shared client for upstream downloads and KV traffic. The
	// proxy endpoint streams bodies verbatim so it gets its own client
	// without transparent decompression.
	client := fshttp.NewClient(fshttp.Config{
		UserAgent:      cfg.UserAgent,
		ConnectTimeout: 10 * time.Second,
		Timeout:        time.Duration(cfg.ReqTimeout) * time.Second,
		TPSLimit:       cfg.TPSLimit,
		TPSLimitBurst:  cfg.TPSLimitBurst,
	})
	proxyClient := fshttp.NewClient(fshttp.Config{
		UserAgent:      cfg.UserAgent,
		ConnectTimeout: 10 * time.Second,
		Timeout:        30 * time.Second,
		NoGzip:         true,
	})
	proxyClient.Timeout = 30 * time.Second // overall cap, not just headers

	kvc := kv.New(client, cfg.KVStoreURI)

	var invalidator *cdn.Invalidator
	if cfg.Cloudfront != nil && cfg.Cloudfront.DistributionID != "" {
		invalidator, err = cdn.New(cfg.Cloudfront.DistributionID)
		if err != nil {
			return err
		}
	}

	var tw *twitter.Client
	if token := os.Getenv("TWITTER_BEARER_TOKEN"); token != "" {
		tw = twitter.New(&http.Client{Timeout: 30 * time.Second}, token)
	} else {
		logrus.Warn("env var TWITTER_BEARER_TOKEN not found. Twitter endpoint will not work")
	}

	adminToken := os.Getenv("ADMIN_TOKEN")
	if adminToken == "" {
		adminToken = "admin"
		logrus.Warn("env var ADMIN_TOKEN not found. Using default admin token")
	}

	srvCfg := httpd.DefaultConfig()
	srvCfg.ListenAddr = "0.0.0.0:" + strconv.Itoa(cfg.Port)
	srv := httpd.NewServer(httpd.Options{
		App:         cfg,
		Pipeline:    object.NewPipeline(cfg, client, kvc),
		KV:          kvc,
		Invalidator: invalidator,
		Twitter:     tw,
		AdminToken:  adminToken,
		ProxyClient: proxyClient,
	}, srvCfg)

	errC := make(chan error, 1)
	go func() { errC <- srv.Serve() }()

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigC:
		logrus.Infof("received %v, shutting down", sig)
		return srv.Shutdown()
	case err := <-errC:
		return err
	}
}

// Main runs the command; it only returns on error.
func Main() {
	if err := Root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}
