package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/dynsyn/internal/config"
	"github.com/at-ishikawa/dynsyn/internal/statestore"
)

func TestOpenStateStore(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.StateConfig
		wantType  any
		wantClose bool
	}{
		{name: "none", cfg: config.StateConfig{Driver: config.StateDriverNone}},
		{name: "yaml", cfg: config.StateConfig{Driver: config.StateDriverYAML, Directory: "state"}, wantType: &statestore.YAMLRepository{}},
		{name: "mysql", cfg: config.StateConfig{Driver: config.StateDriverMySQL}, wantType: &statestore.DBRepository{}, wantClose: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				State:    tt.cfg,
				Database: config.DatabaseConfig{Host: "localhost", Port: 3306, Database: "dynsyn", Username: "user"},
			}
			repository, closeRepository, err := openStateStore(cfg)
			require.NoError(t, err)
			if tt.wantType == nil {
				assert.Nil(t, repository)
			} else {
				assert.IsType(t, tt.wantType, repository)
			}
			assert.Equal(t, tt.wantClose, closeRepository != nil)
			assert.NoError(t, closeStateStore(closeRepository))
		})
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.txt")
	require.NoError(t, os.WriteFile(path, []byte("fast, quick\n"), 0o644))

	port := freePort(t)
	cfg := &config.Config{
		Server: config.ServerConfig{Port: port, ShutdownTimeout: time.Second},
		State:  config.StateConfig{Driver: config.StateDriverNone},
		Synonyms: []config.SynonymConfig{
			{Name: "products", SynonymsPath: path, Interval: time.Hour},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, cfg)
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/sources/products/synonyms?term=fast", port)
	var body string
	assert.Eventually(t, func() bool {
		res, err := http.Get(url)
		if err != nil {
			return false
		}
		defer res.Body.Close()
		b, _ := io.ReadAll(res.Body)
		body = string(b)
		return res.StatusCode == http.StatusOK && strings.Contains(body, "quick")
	}, 5*time.Second, 20*time.Millisecond)
	assert.JSONEq(t, `{"source":"products","version":1,"term":"fast","synonyms":["quick"]}`, body)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
