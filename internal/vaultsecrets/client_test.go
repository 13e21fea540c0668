package vaultsecrets

import (
	"context"
	"testing"
)

func TestDisabledClientRoundTripsThroughLocalCache(t *testing.T) {
	c, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := c.Put(context.Background(), Credentials{APIKey: "k", SecretKey: "s"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.APIKey != "k" || got.SecretKey != "s" {
		t.Fatalf("expected cached credentials, got %+v", got)
	}
}

func TestDisabledClientErrorsWithoutAnyCachedCredentials(t *testing.T) {
	c, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Get(context.Background()); err == nil {
		t.Fatal("expected an error when nothing has ever been cached")
	}
}
