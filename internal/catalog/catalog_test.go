package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/listopadhq/listopad/internal/domain"
)

const sampleCatalog = `
directories:
  - slug: yelp
    name: Yelp
    submit_url: https://connector.local/yelp/submit
    rate_limit_per_hour: 30
    review_sla: 72h
    supports_webhook: true
    raw_status_map:
      APPROVED: approved
      IN_REVIEW: awaiting_review
      REJECTED: rejected
      PUBLISHED: live
  - slug: gmb
    name: Google Business Profile
    submit_url: https://connector.local/gmb/submit
    connector: http
`

func TestParse_ValidCatalog(t *testing.T) {
	reg, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reg.Len() != 2 {
		t.Fatalf("expected 2 directories, got %d", reg.Len())
	}

	yelp, err := reg.Get("yelp")
	if err != nil {
		t.Fatalf("get yelp: %v", err)
	}
	if yelp.Name != "Yelp" {
		t.Errorf("name = %q", yelp.Name)
	}
	if yelp.ReviewSLA.Std() != 72*time.Hour {
		t.Errorf("review_sla = %v, want 72h", yelp.ReviewSLA.Std())
	}
	if !yelp.SupportsWebhook {
		t.Error("yelp should support webhooks")
	}

	// Connector defaults to http when omitted
	gmb, _ := reg.Get("gmb")
	if gmb.Connector != "http" {
		t.Errorf("connector = %q, want http default", gmb.Connector)
	}

	// Order follows the file
	all := reg.All()
	if all[0].Slug != "yelp" || all[1].Slug != "gmb" {
		t.Errorf("order not preserved: %v, %v", all[0].Slug, all[1].Slug)
	}
}

func TestParse_RawStatusMapping(t *testing.T) {
	reg, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status, ok := reg.MapRawStatus("yelp", "APPROVED")
	if !ok || status != domain.StatusApproved {
		t.Errorf("APPROVED -> %q (%v), want approved", status, ok)
	}
	status, ok = reg.MapRawStatus("yelp", "PUBLISHED")
	if !ok || status != domain.StatusLive {
		t.Errorf("PUBLISHED -> %q (%v), want live", status, ok)
	}

	if _, ok := reg.MapRawStatus("yelp", "SOMETHING_NEW"); ok {
		t.Error("unmapped raw status should return ok=false")
	}
	if _, ok := reg.MapRawStatus("unknown-dir", "APPROVED"); ok {
		t.Error("unknown directory should return ok=false")
	}
}

func TestParse_RejectsUnknownMappedStatus(t *testing.T) {
	bad := `
directories:
  - slug: yelp
    raw_status_map:
      APPROVED: launched
`
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected error for unknown mapped status")
	}
}

func TestParse_RejectsDuplicateSlug(t *testing.T) {
	bad := `
directories:
  - slug: yelp
  - slug: yelp
`
	_, err := Parse([]byte(bad))
	if !errors.Is(err, ErrDuplicateSlug) {
		t.Fatalf("expected ErrDuplicateSlug, got %v", err)
	}
}

func TestParse_RejectsMissingSlug(t *testing.T) {
	bad := `
directories:
  - name: No Slug
`
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected error for directory without slug")
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Len() != 2 {
		t.Errorf("expected 2 directories, got %d", reg.Len())
	}
}

func TestGet_UnknownDirectory(t *testing.T) {
	reg, _ := Parse([]byte(sampleCatalog))
	_, err := reg.Get("nope")
	if !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound, got %v", err)
	}
}
