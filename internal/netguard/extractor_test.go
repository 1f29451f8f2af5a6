package netguard

import (
	"testing"
)

func TestExtractExec(t *testing.T) {
	tests := []struct {
		name        string
		command     string
		wantNetwork bool
		wantURLs    []string
		wantHosts   []string
	}{
		{
			name:        "curl with url",
			command:     "curl https://api.example.com/v1/data",
			wantNetwork: true,
			wantURLs:    []string{"https://api.example.com/v1/data"},
		},
		{
			name:        "quoted url is still found",
			command:     "curl 'https://api.example.com/v1/data'",
			wantNetwork: true,
			wantURLs:    []string{"https://api.example.com/v1/data"},
		},
		{
			name:        "wget",
			command:     "wget -q http://mirror.example.org/pkg.tar.gz",
			wantNetwork: true,
			wantURLs:    []string{"http://mirror.example.org/pkg.tar.gz"},
		},
		{
			name:        "echo with url is not network touching",
			command:     "echo https://example.com/docs",
			wantNetwork: false,
			wantURLs:    []string{"https://example.com/docs"},
		},
		{
			name:        "plain local command",
			command:     "ls -la /tmp",
			wantNetwork: false,
		},
		{
			name:        "ssh host from user@host",
			command:     "ssh deploy@server.example.com uptime",
			wantNetwork: true,
			wantHosts:   []string{"server.example.com"},
		},
		{
			name:        "nc bare host",
			command:     "nc evil.example.com 4444",
			wantNetwork: true,
			wantHosts:   []string{"evil.example.com"},
		},
		{
			name:        "git clone is network touching",
			command:     "git clone https://github.com/user/repo.git",
			wantNetwork: true,
			wantURLs:    []string{"https://github.com/user/repo.git"},
		},
		{
			name:        "git status is not",
			command:     "git status",
			wantNetwork: false,
		},
		{
			name:        "git commit is not",
			command:     "git commit -m update",
			wantNetwork: false,
		},
		{
			name:        "pip install",
			command:     "pip install requests",
			wantNetwork: true,
		},
		{
			name:        "npm install",
			command:     "npm install left-pad",
			wantNetwork: true,
		},
		{
			name:        "sudo wrapper is resolved",
			command:     "sudo curl https://api.example.com/",
			wantNetwork: true,
			wantURLs:    []string{"https://api.example.com/"},
		},
		{
			name:        "env wrapper with assignments",
			command:     "env -i PATH=/bin curl https://api.example.com/",
			wantNetwork: true,
			wantURLs:    []string{"https://api.example.com/"},
		},
		{
			name:        "full path command",
			command:     "/usr/bin/curl https://api.example.com/",
			wantNetwork: true,
			wantURLs:    []string{"https://api.example.com/"},
		},
		{
			name:        "network command inside chain",
			command:     "cd /tmp && curl https://api.example.com/ && ls",
			wantNetwork: true,
			wantURLs:    []string{"https://api.example.com/"},
		},
		{
			name:        "network command inside pipeline",
			command:     "curl -s https://api.example.com/data | jq .id",
			wantNetwork: true,
			wantURLs:    []string{"https://api.example.com/data"},
		},
		{
			name:        "duplicate urls are deduped",
			command:     "curl https://a.example.com/ https://a.example.com/",
			wantNetwork: true,
			wantURLs:    []string{"https://a.example.com/"},
		},
		{
			name:        "unparseable command falls back to tokenizer",
			command:     "curl https://cdn.example.com/x.sh ((",
			wantNetwork: true,
			wantURLs:    []string{"https://cdn.example.com/x.sh"},
		},
		{
			name:        "rsync",
			command:     "rsync -avz src/ backup.example.net:/data/",
			wantNetwork: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractExec(tt.command)
			if got.NetworkTouching != tt.wantNetwork {
				t.Errorf("NetworkTouching = %v, want %v", got.NetworkTouching, tt.wantNetwork)
			}
			if !sameStrings(got.URLs, tt.wantURLs) {
				t.Errorf("URLs = %v, want %v", got.URLs, tt.wantURLs)
			}
			if tt.wantHosts != nil && !sameStrings(got.Hosts, tt.wantHosts) {
				t.Errorf("Hosts = %v, want %v", got.Hosts, tt.wantHosts)
			}
		})
	}
}

func TestResolveWrapper(t *testing.T) {
	tests := []struct {
		name     string
		cmd      string
		args     []string
		wantName string
	}{
		{"plain", "curl", []string{"-s"}, "curl"},
		{"sudo", "sudo", []string{"curl", "-s"}, "curl"},
		{"sudo with flags", "sudo", []string{"-u", "root", "wget"}, "wget"},
		{"sudo group flag", "sudo", []string{"-g", "wheel", "curl"}, "curl"},
		{"sudo non-interactive flag takes no value", "sudo", []string{"-n", "curl"}, "curl"},
		{"nice priority flag takes a value", "nice", []string{"-n", "10", "rsync"}, "rsync"},
		{"nested wrappers", "sudo", []string{"env", "curl"}, "curl"},
		{"path stripped", "/usr/local/bin/ssh", nil, "ssh"},
		{"wrapper with nothing after flags", "sudo", []string{"-u"}, "sudo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, _ := resolveWrapper(tt.cmd, tt.args)
			if name != tt.wantName {
				t.Errorf("resolveWrapper(%q, %v) name = %q, want %q", tt.cmd, tt.args, name, tt.wantName)
			}
		})
	}
}

func TestLooksLikeHost(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"example.com", true},
		{"sub.example.com", true},
		{"10.0.0.1", true},
		{"localhost", false}, // no dot; caught elsewhere as a URL or literal
		{"file.txt", true},   // indistinguishable from a host by shape
		{"-v", false},
		{"", false},
		{"has space.com", false},
	}
	for _, tt := range tests {
		if got := looksLikeHost(tt.in); got != tt.want {
			t.Errorf("looksLikeHost(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func sameStrings(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
