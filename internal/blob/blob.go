// Package blob re-exports the frame storage abstractions and selects a
// backend from the environment.
package blob

import (
	"context"
	"fmt"
	"os"

	"cladecore/internal/blob/core"
	fsstore "cladecore/internal/infra/blob/fs"
	memstore "cladecore/internal/infra/blob/memory"
	s3store "cladecore/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// ErrUnsupported indicates an operation isn't supported by a driver.
var ErrUnsupported = core.ErrUnsupported

// Open selects a blob.Store implementation using environment variables.
//
//	CLADECORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	CLADECORE_BLOB_FS_ROOT: directory root when driver=fs (default ./framedata)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("CLADECORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		root := os.Getenv("CLADECORE_BLOB_FS_ROOT")
		return fsstore.New(root)
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
