package core

import (
	"reflect"
	"testing"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  plain  ", "plain"},
		{`="00042"`, "00042"},
		{"=SUM", "SUM"},
		{`"quoted"`, "quoted"},
		{"'single'", "single"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeEmails(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"single", "Anna@Example.com", []string{"anna@example.com"}},
		{"semicolon list", "a@x.org; b@y.org", []string{"a@x.org", "b@y.org"}},
		{"mailto and brackets", "mailto:a@x.org, <b@y.org>", []string{"a@x.org", "b@y.org"}},
		{"duplicates", "a@x.org a@x.org A@X.ORG", []string{"a@x.org"}},
		{"trailing dot", "a@x.org.", []string{"a@x.org"}},
		{"junk dropped", "none; a@x.org; @; foo@bar", []string{"a@x.org"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeEmails(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SanitizeEmails(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFallbackEmail(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"JohnDoe", "johndoe@members.invalid"},
		{"john doe", "john_doe@members.invalid"},
		{"ñ!", "member@members.invalid"},
		{"  ", "member@members.invalid"},
	}

	for _, tt := range tests {
		if got := FallbackEmail(tt.in); got != tt.want {
			t.Errorf("FallbackEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizePhones(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"international", "+39 (02) 123-456", []string{"+3902123456"}},
		{"two numbers", "0123 456 / 0987 654", []string{"0123456", "0987654"}},
		{"plus only", "+", nil},
		{"inner plus dropped", "12+34", []string{"1234"}},
		{"no digits", "n/a", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizePhones(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SanitizePhones(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
