package email

import (
	"strings"
	"testing"
)

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   bool
	}{
		{"fully configured", Config{Host: "smtp.forge.dev", Port: "587", From: "noreply@forge.dev"}, true},
		{"missing host", Config{Port: "587", From: "noreply@forge.dev"}, false},
		{"missing port", Config{Host: "smtp.forge.dev", From: "noreply@forge.dev"}, false},
		{"missing from", Config{Host: "smtp.forge.dev", Port: "587"}, false},
		{"empty", Config{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewService(tt.config).IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSendEmailUnconfigured(t *testing.T) {
	svc := NewService(Config{})

	if err := svc.SendEmail([]string{"alex@forge.dev"}, "hi", "body"); err == nil {
		t.Error("expected error when email is not configured")
	}
	if err := svc.SendHTMLEmail([]string{"alex@forge.dev"}, "hi", "<p>body</p>"); err == nil {
		t.Error("expected error when email is not configured")
	}
}

func TestVerificationTemplateRenders(t *testing.T) {
	html, err := renderTemplate(verificationEmailTemplate, verificationData{
		AppName:         "Asset Forge",
		UserName:        "Alex",
		VerificationURL: "https://forge.dev/verify?token=abc",
	})
	if err != nil {
		t.Fatalf("renderTemplate: %v", err)
	}

	for _, want := range []string{"Asset Forge", "Alex", "https://forge.dev/verify?token=abc"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered email missing %q", want)
		}
	}
}

func TestPasswordResetTemplateRenders(t *testing.T) {
	html, err := renderTemplate(passwordResetEmailTemplate, passwordResetData{
		AppName:  "Asset Forge",
		UserName: "Alex",
		ResetURL: "https://forge.dev/reset?token=xyz",
	})
	if err != nil {
		t.Fatalf("renderTemplate: %v", err)
	}

	if !strings.Contains(html, "https://forge.dev/reset?token=xyz") {
		t.Error("rendered email missing reset URL")
	}
	if !strings.Contains(html, "expire in 1 hour") {
		t.Error("rendered email missing expiry notice")
	}
}
