package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestServeCommandHealthLoginAndChats(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	body := "store:\n  backend: file\n  root: " + filepath.Join(dir, "chats") + "\nlogging:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("XAI_API_KEY", "xai-test")
	t.Setenv("SECRET_KEY", "secret")
	t.Setenv("USERNAME", "admin")
	t.Setenv("PASSWORD", "pw")
	t.Setenv("S3_BUCKET", "")
	t.Setenv("GROKRELAY_ADDR", "")

	buf := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- serveCommand(ctx, []string{"--addr=127.0.0.1:0", "--no-watch"}, cfgPath, ioStreams{out: buf, err: io.Discard})
	}()
	addr := waitForAddress(t, buf, 5*time.Second)
	base := "http://" + addr

	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected health status: %d", resp.StatusCode)
	}

	resp, err = http.Post(base+"/login", "application/json", strings.NewReader(`{"username":"admin","password":"pw"}`))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	var login struct {
		Token  string `json:"token"`
		APIKey string `json:"api_key"`
	}
	err = json.NewDecoder(resp.Body).Decode(&login)
	_ = resp.Body.Close()
	if err != nil || login.Token == "" {
		t.Fatalf("login response: %v %+v", err, login)
	}
	if login.APIKey != "" {
		t.Fatal("api key exposed without expose_api_key")
	}

	req, _ := http.NewRequest(http.MethodPost, base+"/chat/first", strings.NewReader(`{"title":"First"}`))
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("save chat: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save chat status %d", resp.StatusCode)
	}
	if _, err := os.Stat(filepath.Join(dir, "chats", "first.json")); err != nil {
		t.Fatalf("chat not persisted: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveCommand error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serveCommand did not exit after cancel")
	}
}

func TestServeCommandRejectsIncompleteConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("XAI_API_KEY", "")
	t.Setenv("SECRET_KEY", "")
	t.Setenv("PASSWORD", "")
	err := serveCommand(context.Background(), []string{"--no-watch"}, cfgPath, ioStreams{out: io.Discard, err: io.Discard})
	if err == nil || !strings.Contains(err.Error(), "SECRET_KEY") {
		t.Fatalf("expected validation error, got %v", err)
	}
}
