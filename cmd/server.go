// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HaulWorks/haulfs/pkg/api"
	"github.com/HaulWorks/haulfs/pkg/blobstore"
	"github.com/HaulWorks/haulfs/pkg/coordinator"
	"github.com/HaulWorks/haulfs/pkg/debug"
	"github.com/HaulWorks/haulfs/pkg/logger"
	"github.com/HaulWorks/haulfs/pkg/uploadstore"
	"github.com/HaulWorks/haulfs/pkg/utils"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// ServerOpts holds all configuration for the upload server
type ServerOpts struct {
	// Network binding
	IP        string
	HTTPPort  int
	DebugPort int

	// Blob store backend
	Backend   blobstore.Type
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string

	// Key layout inside the bucket
	UploadRoot string
	DataRoot   string

	// Upload behavior
	PartSize        uint64
	PresignExpiry   time.Duration
	CompleteRetries int

	// API protection
	AccessToken string
	RateLimit   float64
	RateBurst   int
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start upload server",
	Long: `Start a HaulFS upload server. The server plans part layouts, issues
presigned part URLs against the configured blob store, tracks progress in
state records stored alongside the data, and commits finished uploads.`,
	Run: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	f := serverCmd.Flags()

	f.String("ip", "0.0.0.0", "Interface to bind HTTP servers to")
	f.Int("http_port", 9600, "API HTTP port")
	f.Int("debug_port", 9610, "Debug/metrics HTTP port")

	f.String("backend", "s3", "Blob store backend (s3 or azure)")
	f.String("bucket_name", "", "Bucket or container holding data and upload state. Required.")
	f.String("endpoint", "", "Blob store endpoint override (e.g., MinIO or Azurite)")
	f.String("region", "us-east-1", "Region for S3 backends")
	f.String("access_key", "", "Access key ID or Azure account name")
	f.String("secret_key", "", "Secret access key or Azure account key")

	f.String("upload_root", "upload", "Key prefix for upload state records")
	f.String("data_root", "data", "Key prefix for finished objects")

	f.String("part_size", "20MiB", "Part size for upload layouts (humanized, e.g. 64MiB)")
	f.Duration("presign_expiry", time.Hour, "Lifetime of presigned part URLs")
	f.Int("complete_retries", 5, "Attempts for the final multipart commit")

	f.String("access_token", "", "Bearer token required on API requests (empty disables auth)")
	f.Float64("rate_limit", 0, "Global API requests per second (0 disables limiting)")
	f.Int("rate_burst", 0, "Burst allowance for the rate limit")
}

func loadServerOpts(cmd *cobra.Command) *ServerOpts {
	l := NewFlagLoader(cmd)

	partSize, err := humanize.ParseBytes(l.String("part_size"))
	if err != nil {
		logger.Fatal().Err(err).Str("part_size", l.String("part_size")).Msg("invalid part_size")
	}

	return &ServerOpts{
		IP:              l.String("ip"),
		HTTPPort:        l.Int("http_port"),
		DebugPort:       l.Int("debug_port"),
		Backend:         blobstore.Type(l.String("backend")),
		Bucket:          l.String("bucket_name"),
		Endpoint:        l.String("endpoint"),
		Region:          l.String("region"),
		AccessKey:       l.String("access_key"),
		SecretKey:       l.String("secret_key"),
		UploadRoot:      l.String("upload_root"),
		DataRoot:        l.String("data_root"),
		PartSize:        partSize,
		PresignExpiry:   l.Duration("presign_expiry"),
		CompleteRetries: l.Int("complete_retries"),
		AccessToken:     l.String("access_token"),
		RateLimit:       l.Float64("rate_limit"),
		RateBurst:       l.Int("rate_burst"),
	}
}

func runServer(cmd *cobra.Command, args []string) {
	utils.LoadConfiguration("server", false)
	opts := loadServerOpts(cmd)

	if opts.Bucket == "" {
		logger.Fatal().Msg("bucket_name is required")
	}

	debug.SetNotReady()

	blobs, err := blobstore.New(blobstore.Config{
		Type:      opts.Backend,
		Bucket:    opts.Bucket,
		Endpoint:  opts.Endpoint,
		Region:    opts.Region,
		AccessKey: opts.AccessKey,
		SecretKey: opts.SecretKey,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("backend", string(opts.Backend)).Msg("failed to create blob store")
	}
	defer blobs.Close()

	states := uploadstore.New(blobs, opts.UploadRoot)

	svc, err := coordinator.NewService(coordinator.Config{
		Blobs:           blobs,
		States:          states,
		DataRoot:        opts.DataRoot,
		PartSize:        opts.PartSize,
		PresignExpiry:   opts.PresignExpiry,
		CompleteRetries: opts.CompleteRetries,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create coordinator")
	}

	apiServer, err := api.NewServer(api.Config{
		Service:     svc,
		AccessToken: opts.AccessToken,
		RateLimit:   opts.RateLimit,
		RateBurst:   opts.RateBurst,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create API server")
	}

	httpServer := startHTTPServer(apiServer.Handler(), opts.IP, opts.HTTPPort)
	debugServer := startHTTPServer(debug.GetMux(), opts.IP, opts.DebugPort)

	debug.SetReady()
	logger.Info().
		Str("backend", string(opts.Backend)).
		Str("bucket", opts.Bucket).
		Int("http_port", opts.HTTPPort).
		Int("debug_port", opts.DebugPort).
		Msg("upload server ready")

	waitForShutdown()

	debug.SetNotReady()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("API server shutdown")
	}
	if err := debugServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("debug server shutdown")
	}
}

func startHTTPServer(handler http.Handler, ip string, port int) *http.Server {
	listener, err := utils.NewListener(utils.JoinHostPort(ip, port), 0)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create HTTP listener")
	}

	httpServer := &http.Server{Handler: handler}
	go func() {
		logger.Info().Str("http_addr", utils.JoinHostPort(ip, port)).Msg("Starting HTTP server")
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start HTTP server")
		}
	}()
	return httpServer
}

func waitForShutdown() {
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	<-stopChan
}
