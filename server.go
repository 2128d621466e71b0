package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/gorillamux"
	"github.com/gorilla/mux"
	_ "github.com/motemen/go-loghttp/global"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"blogposts/export"
	"blogposts/handlers"
	"blogposts/service"
	"blogposts/storage"
	"blogposts/storage/in_memory"
	"blogposts/storage/persistent"
	"blogposts/storage/persistent_bolt"
	"blogposts/storage/persistent_postgres"
	"blogposts/storage/persistent_redis"
	"blogposts/tasks"
	"blogposts/utils"
)

type StorageMode string

const (
	InMemory StorageMode = "inmemory"
	Mongo    StorageMode = "mongo"
	Redis    StorageMode = "redis"
	Postgres StorageMode = "postgres"
	Bolt     StorageMode = "bolt"
)

type AppMode string

const (
	ServerMode AppMode = "server"
	WorkerMode AppMode = "worker"
	LambdaMode AppMode = "lambda"
)

const shutdownTimeout = 5 * time.Second

func setupLogging() {
	level, err := zerolog.ParseLevel(strings.ToLower(utils.GetEnvVarWithDefault("LOG_LEVEL", "info")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

func createStorage() storage.Storage {
	storageMode := StorageMode(utils.GetEnvVarWithDefault("STORAGE_MODE", string(InMemory)))
	switch storageMode {
	case InMemory:
		return in_memory.CreateInMemoryStorage()
	case Mongo:
		mongoUrl := utils.GetEnvVar("MONGO_URL")
		mongoDbName := utils.GetEnvVar("MONGO_DBNAME")
		return persistent.CreateMongoStorage(mongoUrl, mongoDbName)
	case Redis:
		return persistent_redis.CreateRedisStorage(utils.GetEnvVar("REDIS_URL"))
	case Postgres:
		return persistent_postgres.CreatePostgresStorage(utils.GetEnvVar("POSTGRES_URL"))
	case Bolt:
		return persistent_bolt.CreateBoltStorage(utils.GetEnvVarWithDefault("BOLT_PATH", "blogposts.db"))
	default:
		panic("Invalid 'STORAGE_MODE'")
	}
}

func createSink() export.Sink {
	bucket, found := os.LookupEnv("EXPORT_BUCKET")
	if !found {
		return export.NewFileSink(utils.GetEnvVarWithDefault("EXPORT_DIR", "exports"))
	}
	sink, err := export.NewS3Sink(context.Background(), bucket)
	if err != nil {
		panic(err)
	}
	return sink
}

func createBroker(posts export.PostLister, sink export.Sink) *tasks.Broker {
	brokerUrl, found := os.LookupEnv("BROKER_URL")
	if !found {
		return nil
	}
	broker, err := tasks.NewBroker(brokerUrl, posts, sink)
	if err != nil {
		panic(err)
	}
	return broker
}

func createRouter(handler *handlers.HTTPHandler) *mux.Router {
	r := mux.NewRouter()
	r.Use(
		hlog.NewHandler(log.Logger),
		hlog.RequestIDHandler("req_id", "Request-Id"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("")
		}),
	)
	handler.Register(r)
	return r
}

// createApp wires the store, service, sink and optional broker behind a router.
func createApp() (*mux.Router, storage.Storage) {
	store := createStorage()
	postService := service.NewPostService(store)
	sink := createSink()
	handler := &handlers.HTTPHandler{
		Service: postService,
		Sink:    sink,
		Timeout: utils.GetEnvDurationWithDefault("STORE_TIMEOUT", 10*time.Second),
	}
	if broker := createBroker(postService, sink); broker != nil {
		handler.Broker = broker
	}
	return createRouter(handler), store
}

func closeStorage(store storage.Storage) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := store.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to close storage")
	}
}

func CreateServer() *http.Server {
	port := utils.GetEnvVarWithDefault("SERVER_PORT", "8080")
	router, store := createApp()

	srv := &http.Server{
		Handler:      router,
		Addr:         "0.0.0.0:" + port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		closeStorage(store)
	})
	return srv
}

// startLambda serves API Gateway proxy events with the same router. The store
// is closed when the runtime sends SIGTERM.
func startLambda() {
	router, store := createApp()
	lambda.StartWithOptions(
		gorillamux.New(router).ProxyWithContext,
		lambda.WithEnableSIGTERM(func() {
			closeStorage(store)
		}),
	)
}

func CreateWorker() error {
	store := createStorage()
	defer closeStorage(store)

	postService := service.NewPostService(store)
	sink := createSink()
	broker, err := tasks.NewBroker(utils.GetEnvVar("BROKER_URL"), postService, sink)
	if err != nil {
		return err
	}
	return broker.Launch()
}

func serve(srv *http.Server) {
	go func() {
		log.Info().Msgf("Start serving on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to shutdown server")
	}
	log.Info().Msg("Server stopped")
}

func main() {
	setupLogging()
	appMode := AppMode(utils.GetEnvVar("APP_MODE"))
	switch appMode {
	case ServerMode:
		serve(CreateServer())
	case WorkerMode:
		if err := CreateWorker(); err != nil {
			log.Fatal().Err(err).Msg("Worker stopped")
		}
	case LambdaMode:
		startLambda()
	default:
		panic("Invalid 'APP_MODE'")
	}
}
