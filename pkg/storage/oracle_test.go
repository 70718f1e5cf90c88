package storage

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/watchparty/watchparty/pkg/config"
	"github.com/watchparty/watchparty/pkg/logger"
)

type rtFunc func(req *http.Request) *http.Response

func (f rtFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req), nil }

func newTestClient(fn rtFunc) *http.Client {
	return &http.Client{
		Transport: fn,
	}
}

func TestOracleSave(t *testing.T) {
	client, err := NewOracleDataStorageClient("test-url/")
	if err != nil {
		t.Fatal(err)
	}
	var method, url string
	client.client = newTestClient(func(req *http.Request) *http.Response {
		method, url = req.Method, req.URL.String()
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader("")),
			Header: map[string][]string{
				"Opc-Content-Md5": {"CY9rzUYh03PK3k6DJie09g=="},
			},
		}
	})

	file := filepath.Join(t.TempDir(), "current_movie.mp4")
	if err = os.WriteFile(file, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}

	if err = client.Save(context.Background(), "current_movie.mp4", file); err != nil {
		t.Errorf("can't save, err: %v", err)
	}
	if method != http.MethodPut || url != "test-url/current_movie.mp4" {
		t.Errorf("unexpected request %v %v", method, url)
	}
}

func TestOracleLoadMismatch(t *testing.T) {
	client, _ := NewOracleDataStorageClient("test-url/")
	client.client = newTestClient(func(req *http.Request) *http.Response {
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader("test")),
			Header:     map[string][]string{"Content-Md5": {"nope"}},
		}
	})
	if _, err := client.Load(context.Background(), "x"); err == nil {
		t.Errorf("expected an MD5 mismatch")
	}
}

func TestNoAccessURL(t *testing.T) {
	if _, err := NewOracleDataStorageClient(""); err == nil {
		t.Errorf("expected an error")
	}
}

func TestNew(t *testing.T) {
	conf := config.Media{}
	if _, ok := New(context.Background(), conf, logger.Default()).(*NoopCloudStorage); !ok {
		t.Errorf("expected the noop storage")
	}
	conf.Mirror.Oracle = "https://objectstorage/p/abc/o/"
	if _, ok := New(context.Background(), conf, logger.Default()).(*OracleDataStorageClient); !ok {
		t.Errorf("expected the oracle storage")
	}
}
