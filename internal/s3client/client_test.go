package s3client

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestClient_PutGetRoundtrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := TestClient(t, "reports")

	if err := c.PutObject(ctx, "runs/r1/report.json", []byte(`{"ok":true}`), "application/json"); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	got, err := c.GetObject(ctx, "runs/r1/report.json")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Fatalf("unexpected body %q", got)
	}
	if !strings.HasSuffix(c.ObjectURL("/runs/r1/report.json"), "/reports/runs/r1/report.json") {
		t.Fatalf("unexpected object URL %q", c.ObjectURL("runs/r1/report.json"))
	}
}

func TestClient_GetMissingObject(t *testing.T) {
	t.Parallel()
	c := TestClient(t, "reports")

	_, err := c.GetObject(context.Background(), "nope.json")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestClient_ForBucket(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := TestClient(t, "reports", "fixtures")

	other := c.ForBucket("fixtures")
	if other.BucketName() != "fixtures" {
		t.Fatalf("bucket = %q", other.BucketName())
	}
	if err := other.PutObject(ctx, "TestData.json", []byte("{}"), "application/json"); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if _, err := c.GetObject(ctx, "TestData.json"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("object leaked across buckets: %v", err)
	}
	if got := other.ObjectURL("TestData.json"); got != "s3://fixtures/TestData.json" {
		t.Fatalf("ObjectURL without public URL = %q", got)
	}
}

func testParseURI_Roundtrip(t *rapid.T) {
	bucket := rapid.StringMatching(`[a-z0-9][a-z0-9.-]{2,20}`).Draw(t, "bucket")
	key := rapid.StringMatching(`[A-Za-z0-9_./-]{1,40}`).Draw(t, "key")

	gotBucket, gotKey, ok := ParseURI("s3://" + bucket + "/" + key)
	if !ok {
		t.Fatalf("ParseURI rejected s3://%s/%s", bucket, key)
	}
	if gotBucket != bucket || gotKey != key {
		t.Fatalf("ParseURI = (%q, %q), want (%q, %q)", gotBucket, gotKey, bucket, key)
	}
}

func TestParseURI_Roundtrip(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testParseURI_Roundtrip)
}

func TestParseURI_Rejects(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "testdata/TestData.json", "s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
		if _, _, ok := ParseURI(in); ok {
			t.Fatalf("ParseURI(%q) should be rejected", in)
		}
	}
}
