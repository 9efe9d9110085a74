package engine

import (
	"context"
	"testing"

	"knowledgecore/config"
	"knowledgecore/errs"
	"knowledgecore/query"
)

func TestNewCarriesConfigDefaults(t *testing.T) {
	e := New(&config.Configuration{DefaultAppID: "com.example.App", DefaultLang: "en"})
	if e.defaultAppID != "com.example.App" {
		t.Fatalf("defaultAppID = %q", e.defaultAppID)
	}
	if e.language != "en" {
		t.Fatalf("language = %q", e.language)
	}
	if e.domains == nil {
		t.Fatalf("expected an initialized domain cache")
	}
}

func TestNewWithoutS3SyncLeavesHookNil(t *testing.T) {
	e := New(&config.Configuration{DefaultAppID: "com.example.App"})
	if e.s3Sync != nil {
		t.Fatalf("expected no S3 sync hook when S3Sync is not configured")
	}
}

func TestNewWithS3SyncInstallsHook(t *testing.T) {
	e := New(&config.Configuration{
		DefaultAppID: "com.example.App",
		S3Sync:       &config.S3Sync{Bucket: "my-bucket", Region: "us-east-1"},
	})
	if e.s3Sync == nil {
		t.Fatalf("expected an S3 sync hook when S3Sync is configured")
	}
}

func TestQueryWithNoAppIDAnywhereFails(t *testing.T) {
	e := New(&config.Configuration{})
	_, err := e.Query(context.Background(), query.New("gravity"))
	if !errs.Is(err, errs.AppIdNotSet) {
		t.Fatalf("expected AppIdNotSet, got %v", err)
	}
}

func TestGetObjectForAppWithEmptyAppIDFails(t *testing.T) {
	e := New(&config.Configuration{DefaultAppID: "com.example.App"})
	_, err := e.GetObjectForApp(context.Background(), "ekn:///x", "")
	if !errs.Is(err, errs.AppIdNotSet) {
		t.Fatalf("expected AppIdNotSet, got %v", err)
	}
}

func TestTestLinkForAppWithEmptyAppIDFails(t *testing.T) {
	e := New(&config.Configuration{DefaultAppID: "com.example.App"})
	_, err := e.TestLinkForApp(context.Background(), "https://example.com/a", "")
	if !errs.Is(err, errs.AppIdNotSet) {
		t.Fatalf("expected AppIdNotSet, got %v", err)
	}
}

func TestAddDomainForPathRejectsMissingDirectory(t *testing.T) {
	e := New(&config.Configuration{DefaultAppID: "com.example.App"})
	err := e.AddDomainForPath(context.Background(), "com.example.App", "/nonexistent/subscription/dir")
	if !errs.Is(err, errs.PathNotFound) {
		t.Fatalf("expected PathNotFound, got %v", err)
	}
}

func TestAddDomainForPathIsIdempotentOnceCached(t *testing.T) {
	e := New(&config.Configuration{DefaultAppID: "com.example.App"})
	e.domains["com.example.App"] = nil // pretend a domain is already cached
	if err := e.AddDomainForPath(context.Background(), "com.example.App", "/nonexistent"); err != nil {
		t.Fatalf("expected a no-op for an already-cached app id, got %v", err)
	}
}

func TestDomainForQueryPrefersQueryAppIDOverDefault(t *testing.T) {
	e := New(&config.Configuration{DefaultAppID: "com.example.Default"})
	e.domains["com.example.FromQuery"] = nil
	q := query.New("gravity")
	q.AppID = "com.example.FromQuery"
	d, err := e.domainForQuery(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != nil {
		t.Fatalf("expected the cached nil placeholder back unchanged")
	}
}
