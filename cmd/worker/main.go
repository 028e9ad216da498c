package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/clipforge/shorts-engine/internal/config"
	jobsRepository "github.com/clipforge/shorts-engine/internal/jobs/repository"
	"github.com/clipforge/shorts-engine/internal/pipeline"
	"github.com/clipforge/shorts-engine/internal/publish"
	"github.com/clipforge/shorts-engine/internal/remote"
	remoteRepository "github.com/clipforge/shorts-engine/internal/remote/repository"
	"github.com/clipforge/shorts-engine/internal/stages"
	"github.com/clipforge/shorts-engine/internal/worker"
	"github.com/clipforge/shorts-engine/pkg/db/aws"
	"github.com/clipforge/shorts-engine/pkg/db/postgres"
	clientRedis "github.com/clipforge/shorts-engine/pkg/db/redis"
	"github.com/clipforge/shorts-engine/pkg/logger"
)

func main() {
	configFile := "config.yml"
	cfgFile, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("loadConfig: %v", err)
	}
	cfg, err := config.ParseConfig(cfgFile)
	if err != nil {
		log.Fatalf("parseConfig: %v", err)
	}
	appLogger := logger.NewApiLogger(cfg)
	appLogger.InitLogger()
	appLogger.Infof("AppVersion: %s, LogLevel: %s, Mode: %s", cfg.Server.AppVersion, cfg.Logger.Level, cfg.Server.Mode)

	psqlDB, err := postgres.NewPsqlDB(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to db: %s", err)
	}
	appLogger.Infof("db connected, status: %#v", psqlDB.Stats())
	defer psqlDB.Close()

	redisClient, err := clientRedis.NewRedisClient(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to redis: %s", err)
	}
	appLogger.Infof("redis connected")
	defer redisClient.Close()

	var store remote.Store
	if cfg.S3.Endpoint != "" {
		s3Client, presignClient, err := aws.NewAWSClient(cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKey, cfg.S3.SecretKey)
		if err != nil {
			appLogger.Fatalf("could not connect to s3: %s", err)
		}
		store = remoteRepository.NewS3Store(s3Client, presignClient, cfg.S3.ResultBucket)
	}

	repo := jobsRepository.NewJobsRepo(psqlDB)
	queue := jobsRepository.NewJobsQueueRepo(redisClient)

	var uploader pipeline.UploaderAdapter
	if store != nil {
		uploader = stages.NewUploader(store, appLogger)
	}
	runner := pipeline.New(
		cfg,
		repo,
		stages.NewExtractor(appLogger),
		stages.NewNarrator(cfg, appLogger),
		stages.NewSynthesizer(cfg, appLogger),
		stages.NewSubtitleBuilder(),
		stages.NewCompositor(appLogger),
		uploader,
		appLogger,
	)
	publishers := publish.NewRegistry(cfg, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := worker.NewWorker(cfg, appLogger, repo, queue, runner, publishers, store)
	w.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	appLogger.Infof("shutting down workers")
	cancel()
	w.Wait()
}
