package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"matchroom_server/broker"
	"matchroom_server/config"
	"matchroom_server/logging"
	"matchroom_server/mw"
	"matchroom_server/routes"
	"matchroom_server/services"
	"matchroom_server/socket"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Init(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store")
	}

	// S3 backs the candidate catalog and poster URLs when buckets are configured
	var candidates services.CandidateSource = &services.StaticCandidateSource{Catalog: services.DemoCatalog()}
	var posters *services.PosterService
	if cfg.CatalogBucket != "" || cfg.PosterBucket != "" {
		s3Client, err := services.InitializeS3Client(ctx, cfg.AWSRegion)
		if err != nil {
			log.Fatal().Err(err).Msg("s3")
		}
		if cfg.CatalogBucket != "" {
			candidates = &services.S3CatalogSource{Client: s3Client, Bucket: cfg.CatalogBucket, Prefix: cfg.CatalogPrefix}
		}
		if cfg.PosterBucket != "" {
			posters = services.NewPosterService(s3Client, cfg.PosterBucket, "")
		}
	}

	// Push transports
	ioServer := socket.NewSocketServer(cfg.JWTSecret)
	go ioServer.Serve()
	defer ioServer.Close()
	hub := socket.NewHub()

	fanout := services.NewNotificationFanout(ioServer, hub)
	if cfg.RedisURL != "" {
		rdb, err := broker.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis")
		}
		defer rdb.Close()
		backplane := broker.NewBackplane(rdb)
		// every instance, this one included, delivers locally through the relay
		fanout = services.NewNotificationFanout(backplane)
		go func() {
			if err := backplane.Relay(ctx, ioServer, hub); err != nil {
				log.Error().Err(err).Msg("❌ match relay stopped")
			}
		}()
	}

	probe := services.NewIndexProbe(store, cfg.IndexProbeTTL())
	matches := services.NewMatchQueryService(store, probe)
	allocator := services.NewRoomCodeAllocator(store, probe)
	rooms := services.NewRoomService(store, allocator, candidates, matches, probe, cfg.RoomTTL())
	votes := services.NewVoteService(store, rooms, fanout)

	limiter := mw.NewRateLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst, 2*time.Minute)
	defer limiter.Stop()

	deps := routes.Dependencies{
		JWTSecret:   cfg.JWTSecret,
		Rooms:       rooms,
		Votes:       votes,
		Matches:     matches,
		Socket:      ioServer,
		Hub:         hub,
		RateLimiter: limiter,
	}
	if posters != nil {
		deps.Posters = posters
	}
	r := routes.SetupRouter(deps)

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreBackend).Msg("🚀 starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	fanout.Wait()
}

func newStore(ctx context.Context, cfg config.Config) (services.Store, error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return services.NewMemoryStore(), nil
	}
	log.Info().Str("region", cfg.AWSRegion).Msg("Initializing DynamoDB client...")
	client, err := services.InitializeDynamoDBClient(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
	if err != nil {
		return nil, err
	}
	return services.NewDynamoStore(&services.DynamoService{Client: client, TablePrefix: cfg.TablePrefix}), nil
}
