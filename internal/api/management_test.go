// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"golang.org/x/crypto/bcrypt"

	"github.com/traylinx/switchroute/internal/config"
)

func withManagementKey(t *testing.T) func(cfg *config.Config) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return func(cfg *config.Config) {
		withDefaults(cfg)
		cfg.RemoteManagement.SecretKey = string(hash)
	}
}

func auth(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}

func TestManagementRequiresKey(t *testing.T) {
	f := newFixture(t, withManagementKey(t), nil)

	rec := f.do(http.MethodGet, "/v0/management/models", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/v0/management/models", "", auth("wrong"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestManagementRejectsWhenUnconfigured(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(http.MethodGet, "/v0/management/models", "", auth("anything"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestManagementGetModels(t *testing.T) {
	f := newFixture(t, withManagementKey(t), nil)

	rec := f.do(http.MethodGet, "/v0/management/models", "", auth("s3cret"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test/strong-model", gjson.GetBytes(rec.Body.Bytes(), "strong_model_name").String())
	assert.Equal(t, "test/weak-model", gjson.GetBytes(rec.Body.Bytes(), "weak_model_name").String())
}

func TestManagementUpdateModels(t *testing.T) {
	f := newFixture(t, withManagementKey(t), nil)

	rec := f.do(http.MethodPut, "/v0/management/models",
		`{"strong_model_name":"test/new-strong","weak_model_name":"test/new-weak"}`, auth("s3cret"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/v0/management/models", "", auth("s3cret"))
	assert.Equal(t, "test/new-strong", gjson.GetBytes(rec.Body.Bytes(), "strong_model_name").String())
}

func TestManagementUpdateModelsValidation(t *testing.T) {
	f := newFixture(t, withManagementKey(t), nil)

	tests := []string{
		`{"strong_model_name":"","weak_model_name":"b"}`,
		`{"strong_model_name":"a","weak_model_name":""}`,
		`{"strong_model_name":"same","weak_model_name":"same"}`,
		`{bad json`,
	}
	for _, body := range tests {
		rec := f.do(http.MethodPut, "/v0/management/models", body, auth("s3cret"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}
