// Command precise-code-intel-worker dequeues convert and update-tips jobs,
// runs the Importer over spooled LSIF uploads, writes the resulting Dump
// Store files, and keeps the Cross-Repo Index's commit graph and dump
// visibility up to date.
package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/derision-test/glock"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/log"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/gitserver"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/paths"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/queue"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/store"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/worker"
)

func main() {
	liblog := log.Init(log.Resource{Name: "precise-code-intel-worker"})
	defer liblog.Sync()

	logger := log.Scoped("worker", "converts LSIF uploads into queryable dumps")

	cfg := loadConfig()

	s, err := store.New(cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("failed to initialize store", log.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	q := queue.New(redisClient)

	gitserverClient := gitserver.New(func(repository string) (string, error) {
		return filepath.Join(cfg.RepoRoot, repository), nil
	})

	storageDir := func(dumpID int) string {
		return paths.DumpFilename(cfg.StorageDir, dumpID)
	}

	processor := worker.NewProcessor(s, gitserverClient, storageDir, logger)
	pool := worker.NewPool(q, processor, cfg.WorkerPollInterval, cfg.WorkerConcurrency, logger)
	resetter := worker.NewResetter(q, cfg.ResetInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go resetter.Run(ctx)
	go scheduleTipUpdates(ctx, q, cfg.RepoRoot, cfg.TipsScheduleInterval, glock.NewRealClock(), logger)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		if err := http.ListenAndServe(":3189", mux); err != nil {
			logger.Error("debug server exited", log.Error(err))
		}
	}()

	logger.Info("worker started", log.Int("concurrency", cfg.WorkerConcurrency))

	pool.Start()
	os.Exit(0)
}

// scheduleTipUpdates periodically enqueues an update-tips job for every
// repository checked out under repoRoot, so dump visibility tracks each
// repository's moving default branch even without a new upload.
func scheduleTipUpdates(ctx context.Context, q *queue.Queue, repoRoot string, interval time.Duration, clock glock.Clock, logger log.Logger) {
	for {
		entries, err := os.ReadDir(repoRoot)
		if err != nil {
			logger.Warn("failed to list repositories", log.String("repoRoot", repoRoot), log.Error(err))
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			if _, err := q.Enqueue(ctx, queue.KindUpdateTips, queue.UpdateTipsPayload{Repository: entry.Name()}); err != nil {
				logger.Warn("failed to enqueue update-tips job", log.String("repository", entry.Name()), log.Error(err))
			}
		}

		select {
		case <-clock.After(interval):
		case <-ctx.Done():
			return
		}
	}
}
