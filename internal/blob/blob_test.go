package blob

import (
	"context"
	"testing"
)

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	ctx := context.Background()

	t.Setenv("CLADECORE_BLOB_DRIVER", "memory")
	store, err := Open(ctx)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %s, want memory", store.Driver())
	}

	t.Setenv("CLADECORE_BLOB_DRIVER", "fs")
	t.Setenv("CLADECORE_BLOB_FS_ROOT", t.TempDir())
	store, err = Open(ctx)
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver = %s, want fs", store.Driver())
	}

	t.Setenv("CLADECORE_BLOB_DRIVER", "s3")
	t.Setenv("CLADECORE_BLOB_S3_BUCKET", "")
	if _, err := Open(ctx); err == nil {
		t.Fatal("open s3 without bucket succeeded")
	}

	t.Setenv("CLADECORE_BLOB_DRIVER", "carrier-pigeon")
	if _, err := Open(ctx); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestOpenDefaultsToFilesystem(t *testing.T) {
	t.Setenv("CLADECORE_BLOB_DRIVER", "")
	t.Setenv("CLADECORE_BLOB_FS_ROOT", t.TempDir())
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open default: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver = %s, want fs default", store.Driver())
	}
}
