package scanner

import "testing"

func TestServiceName(t *testing.T) {
	tests := []struct {
		port int
		want string
	}{
		{21, "FTP"},
		{22, "SSH"},
		{80, "HTTP"},
		{443, "HTTPS"},
		{3306, "MySQL"},
		{3389, "RDP"},
		{6379, "Redis"},
		{27017, "MongoDB"},
		{12345, "unknown"},
		{0, "unknown"},
	}
	for _, tt := range tests {
		if got := ServiceName(tt.port); got != tt.want {
			t.Errorf("ServiceName(%d) = %q, want %q", tt.port, got, tt.want)
		}
	}
}
