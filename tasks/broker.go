// Package tasks runs post exports in the background on a machinery worker.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RichardKnop/machinery/v1"
	"github.com/RichardKnop/machinery/v1/config"
	"github.com/RichardKnop/machinery/v1/tasks"
	"github.com/rs/zerolog/log"

	"blogposts/export"
)

const (
	ExportPostsTask = "exportPosts"

	consumerTag   = "machinery_worker"
	exportTimeout = 5 * time.Minute
)

type Broker struct {
	server *machinery.Server
}

func brokerConfig(brokerUrl string) *config.Config {
	return &config.Config{
		DefaultQueue:    "machinery_tasks",
		ResultsExpireIn: 3600,
		Broker:          brokerUrl, // "redis://localhost:6379"
		ResultBackend:   brokerUrl,
		Redis: &config.RedisConfig{
			MaxIdle:                3,
			IdleTimeout:            240,
			ReadTimeout:            15,
			WriteTimeout:           15,
			ConnectTimeout:         15,
			NormalTasksPollPeriod:  1000,
			DelayedTasksPollPeriod: 500,
		},
	}
}

// exportPostsTask returns the export result as JSON so it can be read back from
// the result backend.
func exportPostsTask(posts export.PostLister, sink export.Sink) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, exportTimeout)
		defer cancel()
		res, err := export.Run(ctx, posts, sink)
		if err != nil {
			return "", err
		}
		j, err := json.Marshal(res)
		if err != nil {
			return "", err
		}
		return string(j), nil
	}
}

func NewBroker(brokerUrl string, posts export.PostLister, sink export.Sink) (*Broker, error) {
	server, err := machinery.NewServer(brokerConfig(brokerUrl))
	if err != nil {
		return nil, fmt.Errorf("failed to start broker: %w", err)
	}

	registered := map[string]interface{}{
		ExportPostsTask: exportPostsTask(posts, sink),
	}
	if err := server.RegisterTasks(registered); err != nil {
		return nil, fmt.Errorf("failed to register tasks: %w", err)
	}
	return &Broker{server: server}, nil
}

func exportPostsSignature() *tasks.Signature {
	return &tasks.Signature{
		Name:       ExportPostsTask,
		RetryCount: 3,
	}
}

// SendExport enqueues an export and returns the task id.
func (b *Broker) SendExport(ctx context.Context) (string, error) {
	res, err := b.server.SendTaskWithContext(ctx, exportPostsSignature())
	if err != nil {
		return "", fmt.Errorf("failed to send %s task: %w", ExportPostsTask, err)
	}
	return res.Signature.UUID, nil
}

// Launch blocks running a worker until it is stopped by a signal.
func (b *Broker) Launch() error {
	worker := b.server.NewWorker(consumerTag, 0)

	errorhandler := func(err error) {
		log.Error().Err(err).Msg("Task failed")
	}
	worker.SetErrorHandler(errorhandler)

	return worker.Launch()
}
