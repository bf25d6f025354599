package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

var uploaderFlags = []string{"-d", "-m", "-s", "-metrics"}

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "database and mode with separate values",
			args:    []string{"-d", "file:drive.db", "-m", "s3", "-v"},
			allowed: uploaderFlags,
			want:    []string{"-d", "file:drive.db", "-m", "s3"},
		},
		{
			name:    "metrics address in equals form",
			args:    []string{"-metrics=:9100", "-p", "50"},
			allowed: uploaderFlags,
			want:    []string{"-metrics=:9100"},
		},
		{
			name:    "dsn with query string keeps its own equals signs",
			args:    []string{"-d=file:drive.db?_pragma=busy_timeout(5000)"},
			allowed: uploaderFlags,
			want:    []string{"-d=file:drive.db?_pragma=busy_timeout(5000)"},
		},
		{
			name:    "schedule descriptor is taken as a value",
			args:    []string{"-s", "@every 10m", "-m", "grpc"},
			allowed: uploaderFlags,
			want:    []string{"-s", "@every 10m", "-m", "grpc"},
		},
		{
			name:    "config flags are left to the json loader",
			args:    []string{"-c", "up.json", "-m", "s3", "-config=other.json"},
			allowed: uploaderFlags,
			want:    []string{"-m", "s3"},
		},
		{
			name:    "config flags only",
			args:    []string{"-m", "s3", "-config=up.json", "-metrics", ":9100"},
			allowed: ConfigFlagNames,
			want:    []string{"-config=up.json"},
		},
		{
			name:    "empty metrics address before another flag",
			args:    []string{"-metrics", "-m", "s3"},
			allowed: uploaderFlags,
			want:    []string{"-metrics", "-m", "s3"},
		},
		{
			name:    "trailing flag without value",
			args:    []string{"-m", "s3", "-d"},
			allowed: uploaderFlags,
			want:    []string{"-m", "s3", "-d"},
		},
		{
			name:    "positional arguments are dropped",
			args:    []string{"upload", "-m", "grpc", "extra"},
			allowed: uploaderFlags,
			want:    []string{"-m", "grpc"},
		},
		{
			name:    "no arguments",
			args:    nil,
			allowed: uploaderFlags,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"short form among uploader flags", []string{"-m", "s3", "-c", "/etc/gophdrive.json", "-d", "drive.db"}, "/etc/gophdrive.json"},
		{"long form with equals", []string{"-metrics", ":9100", "-config=/etc/gophdrive.json"}, "/etc/gophdrive.json"},
		{"absent", []string{"-m", "grpc", "-d", "drive.db"}, ""},
		{"last occurrence wins", []string{"-c", "/a.json", "-config", "/b.json"}, "/b.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = append([]string{"uploader"}, tt.args...)
			assert.Equal(t, tt.want, JsonConfigFlags())
		})
	}
}
