package web

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
)

// KeyLocale is the session key of the interface language.
const KeyLocale = "lang"

// NewSessionStore creates the signed cookie store the sessions live in.
func NewSessionStore(cfg model.ServerConfig) sessions.Store {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// cookieSession adapts a gorilla session to string keys and values and
// remembers whether it changed.
type cookieSession struct {
	s     *sessions.Session
	dirty bool
}

func (c *cookieSession) Get(key string) string {
	v, _ := c.s.Values[key].(string)
	return v
}

func (c *cookieSession) Set(key, value string) {
	if c.Get(key) == value {
		return
	}
	c.s.Values[key] = value
	c.dirty = true
}

func (c *cookieSession) Delete(key string) {
	if _, ok := c.s.Values[key]; ok {
		delete(c.s.Values, key)
		c.dirty = true
	}
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) *cookieSession {
	if s, ok := ctx.Value(sessionKey{}).(*cookieSession); ok {
		return s
	}
	// Requests that bypassed the middleware get a throwaway session
	return &cookieSession{s: sessions.NewSession(nil, "")}
}

// sessionWriter saves a changed session right before the response header
// is written, so handlers never have to.
type sessionWriter struct {
	http.ResponseWriter
	r       *http.Request
	sess    *cookieSession
	onError func(error)
	written bool
}

func (w *sessionWriter) WriteHeader(code int) {
	w.save()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.save()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *sessionWriter) save() {
	if w.written {
		return
	}
	w.written = true
	if !w.sess.dirty {
		return
	}
	if err := w.sess.s.Save(w.r, w.ResponseWriter); err != nil && w.onError != nil {
		w.onError(err)
	}
}
