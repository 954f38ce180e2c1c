package facematch

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
		{"naïve", "naive"},
		{"hello", "hello"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSampleFileName(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		expected string
	}{
		{"Jan Novák", "1a2b3c4d", "Jan_Novak_1a2b3c4d.jpg"},
		{"  Anna-Marie  ", "deadbeef", "Anna-Marie_deadbeef.jpg"},
		{"O'Brien, Pat", "00112233", "O_Brien_Pat_00112233.jpg"},
		{"../../etc/passwd", "abcd0123", "etc_passwd_abcd0123.jpg"},
		{"李雷", "cafebabe", "student_cafebabe.jpg"},
		{"", "12345678", "student_12345678.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFileName(tt.name, tt.id)
			if result != tt.expected {
				t.Errorf("SampleFileName(%q, %q) = %q, want %q", tt.name, tt.id, result, tt.expected)
			}
		})
	}
}
