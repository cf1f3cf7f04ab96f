// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/traylinx/switchroute/internal/config"
	"github.com/traylinx/switchroute/internal/driver"
	"github.com/traylinx/switchroute/internal/provider"
	"github.com/traylinx/switchroute/internal/routing/difficulty"
	"github.com/traylinx/switchroute/internal/routing/semantic"
	"github.com/traylinx/switchroute/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBackend serves the "test" provider prefix, recording calls and failing
// the models listed in fail. With block set it holds every call until the
// request context expires.
type fakeBackend struct {
	calls []string
	fail  map[string]error
	block bool
}

func (f *fakeBackend) Prefix() string { return "test" }

func (f *fakeBackend) Complete(ctx context.Context, call provider.Call) (*provider.Response, error) {
	f.calls = append(f.calls, call.Model)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.fail[call.Model]; err != nil {
		return nil, err
	}
	payload := fmt.Sprintf(`{"id":"chatcmpl-test","object":"chat.completion","model":%q,"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`, call.Model)
	return &provider.Response{Payload: []byte(payload), Model: call.Model}, nil
}

type nullEmbedder struct{}

func (nullEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0, 0, 1}, nil
}

func (nullEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 0, 1}
	}
	return out, nil
}

type serverFixture struct {
	server  *Server
	backend *fakeBackend
	handler http.Handler
}

func newFixture(t *testing.T, mutate func(cfg *config.Config), chats *store.Store) *serverFixture {
	t.Helper()

	cfg := config.Defaults()
	if mutate != nil {
		mutate(cfg)
	}

	backend := &fakeBackend{}
	registry := provider.NewRegistry(nil)
	registry.Register(backend)

	d := driver.New(registry, nullEmbedder{}, difficulty.NewScorer(nil, nil),
		semantic.Options{}, difficulty.DifficultyThreshold)

	routes, err := semantic.NewRouteSource("")
	require.NoError(t, err)
	t.Cleanup(func() { routes.Close() })

	srv := NewServer(cfg, d, registry, chats, nil, routes)
	return &serverFixture{server: srv, backend: backend, handler: srv.Handler()}
}

func (f *serverFixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
