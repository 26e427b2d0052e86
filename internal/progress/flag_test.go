package progress

import "testing"

func TestEvaluateFlag(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		expected  string
		want      bool
	}{
		{"exact match", "FLAG{recon_master}", "FLAG{recon_master}", true},
		{"case insensitive", "flag{RECON_MASTER}", "FLAG{recon_master}", true},
		{"leading and trailing whitespace", "  FLAG{recon_master}\n", "FLAG{recon_master}", true},
		{"wrong flag", "FLAG{wrong}", "FLAG{recon_master}", false},
		{"empty candidate", "", "FLAG{recon_master}", false},
		{"whitespace only", "   ", "FLAG{recon_master}", false},
		{"partial match", "FLAG{recon", "FLAG{recon_master}", false},
		{"internal whitespace not stripped", "FLAG{recon _master}", "FLAG{recon_master}", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateFlag(tt.candidate, tt.expected); got != tt.want {
				t.Errorf("EvaluateFlag(%q, %q) = %v, want %v", tt.candidate, tt.expected, got, tt.want)
			}
		})
	}
}
