package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wikimovimentobrasil/wikimotivos/internal/apperr"
	"github.com/wikimovimentobrasil/wikimotivos/internal/catalog"
	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
	"github.com/wikimovimentobrasil/wikimotivos/internal/oauth"
	"github.com/wikimovimentobrasil/wikimotivos/internal/submit"
)

var supportedLocales = map[string]bool{"pt": true, "pt-br": true, "en": true}

// locale returns the interface language of the request. A supported "lang"
// query parameter overrides the session and is remembered there.
func (s *Server) locale(r *http.Request) string {
	sess := sessionFrom(r.Context())
	if lang := strings.ToLower(r.URL.Query().Get("lang")); supportedLocales[lang] {
		sess.Set(KeyLocale, lang)
		return lang
	}
	if lang := sess.Get(KeyLocale); supportedLocales[lang] {
		return lang
	}
	return s.defaultLang
}

// handleAddStatement answers every outcome, failures included, with
// status 200 and a JSON string the page shows verbatim.
func (s *Server) handleAddStatement(w http.ResponseWriter, r *http.Request) {
	locale := s.locale(r)

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusOK, model.Message(model.MsgGenericError, locale))
		return
	}

	var sub model.Submission
	if err := decodeBody(r, s.maxBody, &sub); err != nil {
		s.logger.Info("malformed submission", "request_id", RequestIDFrom(r.Context()), "error", err)
		writeJSON(w, http.StatusOK, model.Message(model.MsgGenericError, locale))
		return
	}

	out, err := s.submitter.Submit(r.Context(), sessionFrom(r.Context()), sub)
	if err != nil && !apperr.Is(err, apperr.KindMalformedSubmission) {
		s.logger.Warn("submission failed", "request_id", RequestIDFrom(r.Context()),
			"subject", sub.SubjectID, "code", sub.Predicate, "error", err)
	}
	writeJSON(w, http.StatusOK, model.Message(submit.MessageFor(out, err), locale))
}

type searchRequest struct {
	Term string `json:"term"`
	Cat  string `json:"cat"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	lang := model.DataLang(s.locale(r))

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusOK, []model.SearchResult{})
		return
	}

	var req searchRequest
	if err := decodeBody(r, s.maxBody, &req); err != nil {
		writeJSON(w, http.StatusOK, []model.SearchResult{})
		return
	}
	writeJSON(w, http.StatusOK, s.searcher.Search(r.Context(), req.Term, req.Cat, lang))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	next := r.URL.Query().Get("next")
	if next != "" {
		next = oauth.SafeRedirect(next)
	}

	authURL, err := s.auth.BeginLogin(r.Context(), sess, next)
	if err != nil {
		s.logger.Warn("login failed", "request_id", RequestIDFrom(r.Context()), "error", err)
		writeError(w, statusFor(err), model.Message(messageFor(err), s.locale(r)))
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	next, err := s.auth.CompleteLogin(r.Context(), sess, r)
	if err != nil {
		s.logger.Warn("login callback failed", "request_id", RequestIDFrom(r.Context()), "error", err)
		status := statusFor(err)
		if errors.Is(err, apperr.ErrNoPendingLogin) {
			status = http.StatusBadRequest
		}
		writeError(w, status, model.Message(messageFor(err), s.locale(r)))
		return
	}
	http.Redirect(w, r, next, http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(sessionFrom(r.Context()))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSetLocale(w http.ResponseWriter, r *http.Request) {
	lang := strings.ToLower(r.URL.Query().Get("lang"))
	if supportedLocales[lang] {
		sessionFrom(r.Context()).Set(KeyLocale, lang)
	}
	http.Redirect(w, r, oauth.SafeRedirect(r.URL.Query().Get("return_to")), http.StatusFound)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	user := s.auth.CurrentUser(r.Context(), sessionFrom(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"username": user, "lang": s.locale(r)})
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	lang := model.DataLang(s.locale(r))
	name := chi.URLParam(r, "type")

	col, err := s.browser.Collection(r.Context(), name, lang)
	if errors.Is(err, catalog.ErrUnknownCollection) {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	if err != nil {
		s.logger.Warn("collection query failed", "request_id", RequestIDFrom(r.Context()), "collection", name, "error", err)
		writeError(w, http.StatusBadGateway, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, col)
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	lang := model.DataLang(s.locale(r))
	qid := strings.ToUpper(chi.URLParam(r, "qid"))
	if !catalog.ValidItemID(qid) {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := s.browser.Item(r.Context(), qid, lang)
	if err != nil {
		s.logger.Warn("item query failed", "request_id", RequestIDFrom(r.Context()), "qid", qid, "error", err)
		writeError(w, http.StatusBadGateway, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	n, err := s.browser.WorkCount(r.Context())
	if err != nil {
		s.logger.Warn("work count failed", "request_id", RequestIDFrom(r.Context()), "error", err)
		writeError(w, http.StatusBadGateway, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"number_works": n})
}

// decodeBody reads a single JSON object of at most limit bytes.
func decodeBody(r *http.Request, limit int64, v any) error {
	if r.Body == nil {
		return io.EOF
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// messageFor maps a login failure to its user-facing message.
func messageFor(err error) model.MessageKey {
	if apperr.Is(err, apperr.KindUpstreamTimeout) {
		return model.MsgTimeout
	}
	return model.MsgAuthRequired
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
