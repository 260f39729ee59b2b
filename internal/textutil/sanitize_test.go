package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"  a/b:c*d  ": "a-b-c-d",
		"what?<>|":    "what",
		"":            "",
	}
	for in, want := range tests {
		if got := SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeDirName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Lesson 01 - Intro", "Lesson_01_-_Intro"},
		{"week#2 (final)", "week2_final"},
		{"..hidden", "hidden"},
		{"café crème", "café_crème"},
		{"v1.2", "v1.2"},
		{"???", ""},
	}
	for _, tt := range tests {
		if got := SanitizeDirName(tt.in); got != tt.want {
			t.Errorf("SanitizeDirName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
