// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import "testing"

func TestMatchesRedirectURI(t *testing.T) {
	registered := []string{"https://rp.example/cb", "https://rp.example/cb2"}

	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"exact match", "https://rp.example/cb", true},
		{"second entry", "https://rp.example/cb2", true},
		{"prefix only, not whole string", "https://rp.example/cb/extra", false},
		{"different scheme", "http://rp.example/cb", false},
		{"unregistered", "https://evil.example/cb", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesRedirectURI(registered, tt.candidate); got != tt.want {
				t.Errorf("MatchesRedirectURI(%q) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}
