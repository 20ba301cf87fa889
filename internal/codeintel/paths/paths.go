// Package paths names the on-disk layout shared by the api-server and
// worker processes: where spooled uploads and committed Dump Store files
// live underneath a single storage root.
package paths

import (
	"fmt"
	"path/filepath"
)

// UploadFilename is where an LSIF upload is spooled while its convert job
// waits in the queue.
func UploadFilename(root, jobID string) string {
	return filepath.Join(root, "uploads", jobID+".lsif.gz")
}

// DumpFilename is the committed Dump Store file for a dump once the worker
// has converted it.
func DumpFilename(root string, dumpID int) string {
	return filepath.Join(root, "dbs", fmt.Sprintf("%d.lsif.db", dumpID))
}
