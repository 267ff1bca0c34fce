package artifact

import (
	"context"
	"strings"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	ref, err := s.Put(context.Background(), "run_1", 1, "SELECT 1;")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "SELECT 1;" {
		t.Errorf("Get = %q", got)
	}
}

// Iterations of the same run produce distinct references, so prior
// artifacts are never overwritten.
func TestLocalStoreIterationsDistinct(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	ref1, _ := s.Put(context.Background(), "run_1", 1, "v1")
	ref2, _ := s.Put(context.Background(), "run_1", 2, "v2")
	if ref1 == ref2 {
		t.Fatalf("iteration refs collide: %s", ref1)
	}

	v1, _ := s.Get(context.Background(), ref1)
	if v1 != "v1" {
		t.Errorf("prior artifact clobbered: %q", v1)
	}
}

func TestObjectKey(t *testing.T) {
	key := objectKey("20260830_abcd1234", 3)
	if key != "runs/20260830_abcd1234/artifact_003.sql" {
		t.Errorf("objectKey = %q", key)
	}
}

func TestParseRef(t *testing.T) {
	bucket, key, err := parseRef("s3://artifacts/runs/r/artifact_001.sql")
	if err != nil {
		t.Fatalf("parseRef: %v", err)
	}
	if bucket != "artifacts" || !strings.HasPrefix(key, "runs/") {
		t.Errorf("bucket = %q, key = %q", bucket, key)
	}

	for _, bad := range []string{"http://x/y", "s3://onlybucket", "s3://"} {
		if _, _, err := parseRef(bad); err == nil {
			t.Errorf("parseRef(%q) should fail", bad)
		}
	}
}
