package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulpitworks/sermon-engine/pkg/config"
)

func TestProviderAuthenticatesConfiguredUser(t *testing.T) {
	want := uuid.New()
	p, err := NewProvider(zap.NewNop(), &config.AuthConfig{
		UserID:     want.String(),
		SessionTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	got, ok := p.CurrentUserID(context.Background())
	if !ok {
		t.Fatal("expected an authenticated session right after construction")
	}
	if got != want {
		t.Errorf("user = %s, want %s", got, want)
	}
}

func TestProviderSessionExpiresAndRefreshes(t *testing.T) {
	p, err := NewProvider(zap.NewNop(), &config.AuthConfig{
		UserID:     uuid.NewString(),
		SessionTTL: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	time.Sleep(25 * time.Millisecond)
	if _, ok := p.CurrentUserID(context.Background()); ok {
		t.Fatal("session should have expired")
	}

	if err := p.RefreshSession(context.Background()); err != nil {
		t.Fatalf("RefreshSession: %v", err)
	}
	if _, ok := p.CurrentUserID(context.Background()); !ok {
		t.Fatal("session should be live after refresh")
	}
}

func TestProviderRejectsBadConfig(t *testing.T) {
	if _, err := NewProvider(zap.NewNop(), &config.AuthConfig{SessionTTL: time.Hour}); err == nil {
		t.Error("expected an error for a missing user ID")
	}
	if _, err := NewProvider(zap.NewNop(), &config.AuthConfig{UserID: "not-a-uuid", SessionTTL: time.Hour}); err == nil {
		t.Error("expected an error for a malformed user ID")
	}
}
