package session_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bizportal/internal/session"
)

func newManager(t *testing.T) (*session.Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return session.NewManager(client, "portal_session", "secret", time.Hour, false), mr
}

func TestManagerCommitAndReload(t *testing.T) {
	manager, _ := newManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := manager.Load(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	require.NoError(t, sess.Set(session.KeySelectedCompany, map[string]any{"CompanyID": 3}))
	res := httptest.NewRecorder()
	require.NoError(t, manager.Commit(ctx, res, sess))

	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, manager.CookieName(), cookies[0].Name)
	assert.Equal(t, sess.ID, cookies[0].Value)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookies[0])
	loaded, err := manager.Load(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)

	var company struct{ CompanyID int }
	require.NoError(t, loaded.Get(session.KeySelectedCompany).Decode(&company))
	assert.Equal(t, 3, company.CompanyID)
}

func TestManagerLoadByIDMissing(t *testing.T) {
	manager, _ := newManager(t)
	_, err := manager.LoadByID(context.Background(), "nope")
	assert.True(t, errors.Is(err, session.ErrNotFound))
}

func TestManagerDestroy(t *testing.T) {
	manager, mr := newManager(t)
	ctx := context.Background()

	sess, err := manager.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sess.Set(session.KeyUser, `{"CustomerID":1}`))
	require.NoError(t, manager.Save(ctx, sess))
	assert.True(t, mr.Exists("portal:session:"+sess.ID))

	manager.Destroy(sess)
	res := httptest.NewRecorder()
	require.NoError(t, manager.Commit(ctx, res, sess))
	assert.False(t, mr.Exists("portal:session:"+sess.ID))
	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestSessionClear(t *testing.T) {
	manager, _ := newManager(t)
	ctx := context.Background()
	sess, err := manager.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	require.NoError(t, sess.Set(session.KeyUser, `{"CustomerID":1}`))
	require.NoError(t, sess.Clear(session.KeyUser))
	assert.True(t, sess.Get(session.KeyUser).IsNull())
}
