package tlsclient

import (
	"testing"
	"time"

	"github.com/bogdanfinn/tls-client/profiles"
)

func TestNew(t *testing.T) {
	t.Run("default options", func(t *testing.T) {
		client, err := New(nil)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if client.Jar == nil {
			t.Fatal("client should have a cookie jar")
		}
	})

	t.Run("custom timeouts", func(t *testing.T) {
		opts := &Options{ConnectTimeout: 2 * time.Second, ReadTimeout: 3 * time.Second}
		client, err := New(opts)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if client.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", client.Timeout)
		}
	})
}

func TestProfileRotation(t *testing.T) {
	t.Run("off always returns first", func(t *testing.T) {
		opts := &Options{
			ProfileRotationMode: ProfileRotationOff,
			CustomProfiles:      []profiles.ClientProfile{profiles.Chrome_133, profiles.Firefox_133},
		}
		first := profileName(selectProfile(opts))
		for i := 0; i < 5; i++ {
			if got := profileName(selectProfile(opts)); got != first {
				t.Errorf("iteration %d: got %s, want %s", i, got, first)
			}
		}
	})

	t.Run("sequential wraps around", func(t *testing.T) {
		currentProfileIndex = 0
		opts := &Options{
			ProfileRotationMode: ProfileRotationSequential,
			CustomProfiles:      []profiles.ClientProfile{profiles.Chrome_133, profiles.Firefox_133},
		}
		first := profileName(selectProfile(opts))
		_ = selectProfile(opts)
		third := profileName(selectProfile(opts))
		if first != third {
			t.Errorf("expected wrap-around: first=%s third=%s", first, third)
		}
	})
}

func TestCheckRedirectDisabled(t *testing.T) {
	client, err := New(DefaultOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client.CheckRedirect == nil {
		t.Fatal("expected a CheckRedirect func when FollowRedirects is false")
	}
}
