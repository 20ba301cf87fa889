// Command precise-code-intel-api-server is the HTTP surface for LSIF upload
// and code intelligence queries: it spools uploads, enqueues convert jobs,
// and answers Definitions/References/Hover/Exists against the Cross-Repo
// Index and Dump Store.
package main

import (
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/sourcegraph/log"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/backend"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/cache"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/httpapi"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/paths"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/queue"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/store"
)

func main() {
	liblog := log.Init(log.Resource{Name: "precise-code-intel-api-server"})
	defer liblog.Sync()

	logger := log.Scoped("api-server", "HTTP surface for LSIF upload and code intelligence queries")

	cfg := loadConfig()

	s, err := store.New(cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("failed to initialize store", log.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	q := queue.New(redisClient)

	tier := cache.NewTier(cache.Config{
		ConnectionCacheCapacity:  cfg.ConnectionCacheCapacity,
		DocumentCacheCapacity:    cfg.DocumentCacheCapacity,
		ResultChunkCacheCapacity: cfg.ResultChunkCacheCapacity,
	})

	storageDir := func(dumpID int) string {
		return paths.DumpFilename(cfg.StorageDir, dumpID)
	}

	b := backend.New(s, tier, storageDir)
	uploads := &httpapi.Uploads{Queue: q, StorageDir: cfg.StorageDir, Logger: logger}
	router := httpapi.NewRouter(b, uploads, logger)

	logger.Info("api-server started", log.String("addr", cfg.Addr))

	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		logger.Fatal("server exited", log.Error(err))
	}
}
