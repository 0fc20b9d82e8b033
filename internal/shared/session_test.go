package shared_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bankcrm/bankcrm/internal/shared"
)

func newManager(t *testing.T) (*shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewSessionManager(client, "sid", "session-secret", time.Hour, false), mr
}

// roundTrip loads a session for a request carrying cookie, lets fn mutate it
// and commits. It returns the session and the cookie set by the response.
func roundTrip(t *testing.T, sm *shared.SessionManager, cookie *http.Cookie, fn func(*shared.Session)) (*shared.Session, *http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	if fn != nil {
		fn(sess)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, req, sess))
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			return sess, c
		}
	}
	return sess, cookie
}

func TestSessionPersistsUserAndValues(t *testing.T) {
	sm, _ := newManager(t)

	first, cookie := roundTrip(t, sm, nil, func(s *shared.Session) {
		s.SetUser("42")
		s.Set("theme", "dark")
	})
	require.NotNil(t, cookie)

	second, _ := roundTrip(t, sm, cookie, nil)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "42", second.User())
	require.Equal(t, "dark", second.Get("theme"))
}

func TestFlashSurvivesRedirectAndIsConsumedOnce(t *testing.T) {
	sm, _ := newManager(t)

	_, cookie := roundTrip(t, sm, nil, func(s *shared.Session) {
		s.AddFlash(shared.FlashMessage{Kind: "success", Message: "Lead captured"})
	})

	var popped *shared.FlashMessage
	roundTrip(t, sm, cookie, func(s *shared.Session) { popped = s.PopFlash() })
	require.NotNil(t, popped)
	require.Equal(t, "Lead captured", popped.Message)

	roundTrip(t, sm, cookie, func(s *shared.Session) { popped = s.PopFlash() })
	require.Nil(t, popped)
}

func TestTamperedCookieStartsFreshSession(t *testing.T) {
	sm, _ := newManager(t)

	first, cookie := roundTrip(t, sm, nil, func(s *shared.Session) { s.SetUser("42") })
	forged := &http.Cookie{Name: "sid", Value: first.ID + ".forged"}

	second, _ := roundTrip(t, sm, forged, nil)
	require.NotEqual(t, first.ID, second.ID)
	require.Empty(t, second.User())

	unsigned := &http.Cookie{Name: "sid", Value: first.ID}
	third, _ := roundTrip(t, sm, unsigned, nil)
	require.Empty(t, third.User())
	require.NotEmpty(t, cookie.Value)
}

func TestRenewMovesSessionToNewID(t *testing.T) {
	sm, mr := newManager(t)

	first, cookie := roundTrip(t, sm, nil, func(s *shared.Session) { s.Set("csrf_token", "abc") })
	oldID := first.ID
	require.True(t, mr.Exists("session:"+oldID))

	renewed, newCookie := roundTrip(t, sm, cookie, func(s *shared.Session) {
		sm.Renew(s)
		s.SetUser("7")
	})
	require.NotEqual(t, oldID, renewed.ID)
	require.False(t, mr.Exists("session:"+oldID))
	require.True(t, mr.Exists("session:"+renewed.ID))

	loaded, _ := roundTrip(t, sm, newCookie, nil)
	require.Equal(t, "7", loaded.User())
	require.Equal(t, "abc", loaded.Get("csrf_token"))
}

func TestDestroyRemovesSession(t *testing.T) {
	sm, mr := newManager(t)

	first, cookie := roundTrip(t, sm, nil, func(s *shared.Session) { s.SetUser("9") })
	_, expired := roundTrip(t, sm, cookie, func(s *shared.Session) { sm.Destroy(s) })

	require.False(t, mr.Exists("session:"+first.ID))
	require.Equal(t, -1, expired.MaxAge)
}
