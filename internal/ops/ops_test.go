package ops

import (
	"strings"
	"testing"

	"github.com/gaspardpetit/unraidlink/internal/client"
)

func TestLookupKnownOperation(t *testing.T) {
	op, err := Lookup("stopContainer")
	if err != nil {
		t.Fatal(err)
	}
	if op.Kind != client.KindMutation {
		t.Fatalf("expected mutation, got %s", op.Kind)
	}
	req := op.Request(map[string]any{"id": "abc"})
	if req.Name != "stopContainer" || req.Variables["id"] != "abc" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestLookupUnknownOperation(t *testing.T) {
	if _, err := Lookup("rebootFlux"); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestCatalogEntriesAreConsistent(t *testing.T) {
	for _, name := range Names() {
		op, err := Lookup(name)
		if err != nil {
			t.Fatal(err)
		}
		if op.Name != name {
			t.Fatalf("catalog key %q holds op named %q", name, op.Name)
		}
		if op.Query == "" {
			t.Fatalf("%s has empty query", name)
		}
		switch op.Kind {
		case client.KindQuery:
			if !strings.HasPrefix(op.Query, "query") {
				t.Fatalf("%s declared as query but document is not", name)
			}
		case client.KindMutation:
			if !strings.HasPrefix(op.Query, "mutation") {
				t.Fatalf("%s declared as mutation but document is not", name)
			}
		default:
			t.Fatalf("%s has unknown kind %q", name, op.Kind)
		}
	}
}

func TestDiskHeavyOperationsUseExtendedTier(t *testing.T) {
	for _, name := range []string{"arrayStatus", "startArray", "stopArray", "mountDisk", "unmountDisk", "startParityCheck"} {
		op, err := Lookup(name)
		if err != nil {
			t.Fatal(err)
		}
		if op.Tier != client.TierExtended {
			t.Fatalf("%s should run on the extended tier", name)
		}
	}
}

func TestCatalogCoversNotificationsAndLogListing(t *testing.T) {
	for _, name := range []string{"notificationsOverview", "listLogFiles"} {
		op, err := Lookup(name)
		if err != nil {
			t.Fatal(err)
		}
		if op.Kind != client.KindQuery || op.Tier != client.TierDefault {
			t.Fatalf("%s should be a default-tier query, got %+v", name, op)
		}
	}
}

func TestLogFileTopicFingerprintVariesByPath(t *testing.T) {
	a := LogFileTopic("/var/log/syslog")
	b := LogFileTopic("/var/log/docker.log")
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("distinct paths must yield distinct fingerprints")
	}
	if a.Variables["path"] != "/var/log/syslog" {
		t.Fatalf("unexpected variables: %+v", a.Variables)
	}
}
