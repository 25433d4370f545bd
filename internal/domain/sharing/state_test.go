package sharing

import (
	"errors"
	"testing"
	"time"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from, action, want string
	}{
		{StatusPending, ActionAccept, StatusActive},
		{StatusPending, ActionReject, StatusRejected},
		{StatusPending, ActionRevoke, StatusRevoked},
		{StatusActive, ActionRevoke, StatusRevoked},
		{StatusActive, ActionExpire, StatusExpired},
		{StatusActive, ActionAccept, ""},
		{StatusActive, ActionReject, ""},
		{StatusRejected, ActionAccept, ""},
		{StatusRevoked, ActionRevoke, ""},
		{StatusExpired, ActionAccept, ""},
		{StatusPending, ActionExpire, ""},
	}
	for _, tt := range tests {
		t.Run(tt.from+"/"+tt.action, func(t *testing.T) {
			got, err := next(tt.from, tt.action)
			if tt.want == "" {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("expected ErrInvalidTransition, got %q %v", got, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("expected %s, got %q %v", tt.want, got, err)
			}
		})
	}
}

func TestShare_IsLive(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	tests := []struct {
		name  string
		share Share
		want  bool
	}{
		{"active without expiry", Share{Status: StatusActive}, true},
		{"active before expiry", Share{Status: StatusActive, ExpiresOn: &future}, true},
		{"active past expiry", Share{Status: StatusActive, ExpiresOn: &past}, false},
		{"active at expiry", Share{Status: StatusActive, ExpiresOn: &now}, false},
		{"pending", Share{Status: StatusPending}, false},
		{"revoked", Share{Status: StatusRevoked, ExpiresOn: &future}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.share.IsLive(now); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	for status, want := range map[string]bool{
		StatusPending:  false,
		StatusActive:   false,
		StatusRejected: true,
		StatusExpired:  true,
		StatusRevoked:  true,
	} {
		if got := terminal(status); got != want {
			t.Errorf("terminal(%q) = %v, want %v", status, got, want)
		}
	}
}
