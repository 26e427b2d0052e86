package models

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name        string
		permissions []string
		active      bool
		check       string
		want        bool
	}{
		{"exact match", []string{"progress:write"}, true, "progress:write", true},
		{"missing", []string{"progress:read"}, true, "progress:write", false},
		{"resource wildcard", []string{"progress:*"}, true, "progress:write", true},
		{"resource wildcard other resource", []string{"progress:*"}, true, "leaderboard:read", false},
		{"global wildcard", []string{"*"}, true, "users:write", true},
		{"empty permissions", nil, true, "progress:read", false},
		{"inactive client never passes", []string{"*"}, false, "progress:read", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &ApiClient{Permissions: tt.permissions, IsActive: tt.active}
			if got := client.HasPermission(tt.check); got != tt.want {
				t.Errorf("HasPermission(%q) with %v = %v, want %v", tt.check, tt.permissions, got, tt.want)
			}
		})
	}

	var nilClient *ApiClient
	if nilClient.HasPermission("progress:read") {
		t.Error("nil client must not have permissions")
	}
}

func TestMaskedApiKey(t *testing.T) {
	client := &ApiClient{ApiKey: "sk_live_abcdef123456"}
	masked := client.MaskedApiKey()
	if masked == client.ApiKey {
		t.Error("masked key must not equal the full key")
	}

	short := &ApiClient{ApiKey: "abc"}
	if short.MaskedApiKey() == short.ApiKey {
		t.Error("short keys must still be masked")
	}
}
