package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"normal address", "alice.b@example.com", "al***@example.com"},
		{"two char local part", "ab@example.com", "***@example.com"},
		{"one char local part", "a@example.com", "***@example.com"},
		{"not an email", "not-an-email", "***@***"},
		{"double at", "a@b@c.com", "***@***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactEmail(tt.input); got != tt.want {
				t.Errorf("RedactEmail(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRedactValueFieldKeys(t *testing.T) {
	tests := []struct {
		key  string
		val  string
		want string
	}{
		{"recipient_email", "carol@example.com", "ca***@example.com"},
		{"buyer", "dave@example.com", "da***@example.com"},
		{"url", "https://cdn.example.com/f.pdf", "https://cdn.example.com/f.pdf"},
		{"note", "contact frank@example.com for help", "contact fr***@example.com for help"},
	}

	for _, tt := range tests {
		if got := redactValue(tt.key, tt.val); got != tt.want {
			t.Errorf("redactValue(%q, %q) = %q, want %q", tt.key, tt.val, got, tt.want)
		}
	}
}
