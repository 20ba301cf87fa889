// Package worker implements the Job Pipeline's consumer side: a pool of
// goroutines that dequeue convert and update-tips jobs and run them against
// the Importer, the Dump Store, the Cross-Repo Index, and gitserver.
package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/sourcegraph/log"

	"github.com/sourcegraph/precise-code-intel/internal/codeintel/bundles/persistence"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/correlation"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/gitserver"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/queue"
	"github.com/sourcegraph/precise-code-intel/internal/codeintel/store"
)

// Processor runs a single dequeued job to completion.
type Processor interface {
	Process(ctx context.Context, job queue.Job) error
}

// StorageDir returns the Dump Store filename a dump with the given id should
// live at once committed.
type StorageDir func(dumpID int) string

type processor struct {
	store      store.Store
	gitserver  *gitserver.Client
	storageDir StorageDir
	logger     log.Logger
}

// NewProcessor builds the Processor run by every worker pool routine.
func NewProcessor(s store.Store, g *gitserver.Client, storageDir StorageDir, logger log.Logger) Processor {
	return &processor{store: s, gitserver: g, storageDir: storageDir, logger: logger}
}

func (p *processor) Process(ctx context.Context, job queue.Job) error {
	switch job.Kind {
	case queue.KindConvert:
		var payload queue.ConvertPayload
		if err := decodePayload(job, &payload); err != nil {
			return err
		}
		return p.processConvert(ctx, payload)

	case queue.KindUpdateTips:
		var payload queue.UpdateTipsPayload
		if err := decodePayload(job, &payload); err != nil {
			return err
		}
		return p.processUpdateTips(ctx, payload)

	default:
		return errors.Newf("worker: unrecognized job kind %q", job.Kind)
	}
}

// processConvert runs the ingest, canonicalize, and emit passes over a
// spooled LSIF upload, registers the dump and its packages/references in the
// Cross-Repo Index, writes the resulting bundle to a temporary file beside
// the dump's final path, refreshes commit-graph visibility for the
// repository, and finally renames the temporary file into place.
func (p *processor) processConvert(ctx context.Context, payload queue.ConvertPayload) (err error) {
	f, err := os.Open(payload.Filename)
	if err != nil {
		return errors.Wrap(err, "os.Open")
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			p.logger.Warn("failed to close upload file", log.String("filename", payload.Filename), log.Error(closeErr))
		}
		if removeErr := os.Remove(payload.Filename); removeErr != nil {
			p.logger.Warn("failed to remove spooled upload file", log.String("filename", payload.Filename), log.Error(removeErr))
		}
	}()

	state, err := correlation.Correlate(ctx, f)
	if err != nil {
		return errors.Wrap(err, "correlation.Correlate")
	}

	bundle, err := correlation.Group(state)
	if err != nil {
		return errors.Wrap(err, "correlation.Group")
	}

	tx, err := p.store.Transact(ctx)
	if err != nil {
		return errors.Wrap(err, "store.Transact")
	}
	defer func() { err = tx.Done(err) }()

	dumpID, err := tx.AddPackagesAndReferences(ctx, payload.Repository, payload.Commit, payload.Root, bundle.Packages, bundle.PackageReferences)
	if err != nil {
		return errors.Wrap(err, "store.AddPackagesAndReferences")
	}

	filename := p.storageDir(dumpID)
	if mkdirErr := os.MkdirAll(filepath.Dir(filename), 0o755); mkdirErr != nil {
		return errors.Wrap(mkdirErr, "os.MkdirAll")
	}

	tmpFilename := filename + ".tmp"
	if err := persistence.WriteBundle(ctx, tmpFilename, state.LSIFVersion, bundle); err != nil {
		_ = os.Remove(tmpFilename)
		return errors.Wrap(err, "persistence.WriteBundle")
	}

	if err := p.updateCommitsAndVisibility(ctx, tx, payload.Repository, payload.Commit); err != nil {
		_ = os.Remove(tmpFilename)
		return errors.Wrap(err, "updateCommitsAndVisibility")
	}

	if err := os.Rename(tmpFilename, filename); err != nil {
		_ = os.Remove(tmpFilename)
		return errors.Wrap(err, "os.Rename")
	}

	p.logger.Info("converted upload", log.Int("dumpID", dumpID), log.String("repository", payload.Repository), log.String("commit", payload.Commit))
	return nil
}

// processUpdateTips asks gitserver for the current commit graph and tip of
// the job's repository and refreshes which dumps are visible from that tip.
func (p *processor) processUpdateTips(ctx context.Context, payload queue.UpdateTipsPayload) error {
	tip, err := p.gitserver.Head(ctx, payload.Repository)
	if err != nil {
		return errors.Wrap(err, "gitserver.Head")
	}

	graph, err := p.gitserver.CommitGraph(ctx, payload.Repository)
	if err != nil {
		return errors.Wrap(err, "gitserver.CommitGraph")
	}

	if err := p.store.UpdateCommits(ctx, payload.Repository, graph); err != nil {
		return errors.Wrap(err, "store.UpdateCommits")
	}

	if err := p.store.UpdateTips(ctx, payload.Repository, tip); err != nil {
		return errors.Wrap(err, "store.UpdateTips")
	}

	p.logger.Info("updated tip visibility", log.String("repository", payload.Repository), log.String("tip", tip))
	return nil
}

func decodePayload(job queue.Job, v interface{}) error {
	if err := json.Unmarshal(job.Payload, v); err != nil {
		return errors.Wrapf(err, "unmarshaling %s job payload", job.Kind)
	}
	return nil
}

// updateCommitsAndVisibility discovers the commit graph around both the
// repository's current tip and the commit just uploaded, so a dump uploaded
// behind the tip is still reachable from it, then recomputes visibility.
func (p *processor) updateCommitsAndVisibility(ctx context.Context, tx store.Store, repository, commit string) error {
	tip, err := p.gitserver.Head(ctx, repository)
	if err != nil {
		return errors.Wrap(err, "gitserver.Head")
	}

	graph, err := p.gitserver.CommitGraph(ctx, repository)
	if err != nil {
		return errors.Wrap(err, "gitserver.CommitGraph")
	}

	if err := tx.UpdateCommits(ctx, repository, graph); err != nil {
		return errors.Wrap(err, "store.UpdateCommits")
	}

	return tx.UpdateTips(ctx, repository, tip)
}
