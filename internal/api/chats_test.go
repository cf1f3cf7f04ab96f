// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/traylinx/switchroute/internal/config"
	"github.com/traylinx/switchroute/internal/store"
)

func withDefaults(cfg *config.Config) {
	cfg.Models.Strong.Name = "test/strong-model"
	cfg.Models.Weak.Name = "test/weak-model"
}

func mockStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewWithDB(db), mock
}

func TestChatsUnavailableWithoutStore(t *testing.T) {
	f := newFixture(t, nil, nil)
	for _, probe := range []struct{ method, path string }{
		{http.MethodPost, "/v1/chats"},
		{http.MethodGet, "/v1/chats"},
		{http.MethodGet, "/v1/chats/x"},
		{http.MethodPost, "/v1/chats/x/messages"},
	} {
		rec := f.do(probe.method, probe.path, `{"title":"t","content":"c"}`, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, probe.path)
	}
}

func TestCreateChat(t *testing.T) {
	chats, mock := mockStore(t)
	mock.ExpectExec("INSERT INTO chats").
		WithArgs(sqlmock.AnyArg(), "support", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	f := newFixture(t, withDefaults, chats)
	rec := f.do(http.MethodPost, "/v1/chats", `{"title":"support"}`, nil)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "support", gjson.GetBytes(rec.Body.Bytes(), "title").String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateChatRequiresTitle(t *testing.T) {
	chats, _ := mockStore(t)
	f := newFixture(t, withDefaults, chats)
	rec := f.do(http.MethodPost, "/v1/chats", `{"title":"  "}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChatNotFound(t *testing.T) {
	chats, mock := mockStore(t)
	mock.ExpectQuery("SELECT id, title, created_at FROM chats WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "created_at"}))

	f := newFixture(t, withDefaults, chats)
	rec := f.do(http.MethodGet, "/v1/chats/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatTurn(t *testing.T) {
	chats, mock := mockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, title, created_at FROM chats WHERE id").
		WithArgs("chat-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "created_at"}).
			AddRow("chat-1", "support", now))

	msgCols := []string{"id", "chat_id", "role", "content", "model_used", "predicted_semantic", "metadata", "created_at"}
	mock.ExpectQuery("FROM messages WHERE chat_id").
		WithArgs("chat-1", 4).
		WillReturnRows(sqlmock.NewRows(msgCols).
			AddRow("m1", "chat-1", store.RoleUser, "earlier question", nil, nil, nil, now.Add(-time.Minute)))

	// One insert per side of the exchange.
	mock.ExpectExec("INSERT INTO messages").
		WithArgs(sqlmock.AnyArg(), "chat-1", store.RoleUser, "Hey",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs(sqlmock.AnyArg(), "chat-1", store.RoleAssistant, "ok",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	f := newFixture(t, withDefaults, chats)
	rec := f.do(http.MethodPost, "/v1/chats/chat-1/messages", `{"content":"Hey"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.Bytes()
	assert.Equal(t, "Hey", gjson.GetBytes(body, "user_message.content").String())
	assert.Equal(t, "ok", gjson.GetBytes(body, "ai_message.content").String())
	assert.Equal(t, "weak-model", gjson.GetBytes(body, "ai_message.model_used").String())
	assert.Equal(t, []string{"weak-model"}, f.backend.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatTurnRejectsBadSemantics(t *testing.T) {
	chats, _ := mockStore(t)
	f := newFixture(t, withDefaults, chats)
	body := `{"content":"Hey","semantics":[{"name":"a","model_type":"weak","utterances":["x"]},{"name":"a","model_type":"strong","utterances":["y"]}]}`
	rec := f.do(http.MethodPost, "/v1/chats/chat-1/messages", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatTurnWithoutDefaultPair(t *testing.T) {
	chats, _ := mockStore(t)
	f := newFixture(t, nil, chats)
	rec := f.do(http.MethodPost, "/v1/chats/chat-1/messages", `{"content":"Hey"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatTurnRequiresContent(t *testing.T) {
	chats, _ := mockStore(t)
	f := newFixture(t, withDefaults, chats)
	rec := f.do(http.MethodPost, "/v1/chats/chat-1/messages", `{"content":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
