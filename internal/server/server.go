/*
 * Copyright 2024 The Sitewright Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package server wires the session manager, the request interpreter and the
// evaluator into the HTTP front end
package server

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/errors"
	"github.com/sitewright/sitewright/internal/interpreter"
	"github.com/sitewright/sitewright/internal/session"
	"github.com/sitewright/sitewright/internal/site"
	"github.com/sitewright/sitewright/internal/util/log"
	"github.com/sitewright/sitewright/internal/util/metrics"
)

// AnnotationContentType is the file annotation that overrides the response content type
const AnnotationContentType = "contentType"

// Server is the HTTP front end
type Server struct {
	resolver  *site.Resolver
	manager   *session.Manager
	opts      interpreter.Options
	evaluator Evaluator
	annotator interpreter.Annotator
	srv       *http.Server
}

// New returns a Server over the provided collaborators. A nil evaluator
// selects the passthrough evaluator.
func New(rv *site.Resolver, mgr *session.Manager, opts interpreter.Options, ev Evaluator) *Server {
	if ev == nil {
		ev = PassthroughEvaluator{}
	}
	return &Server{
		resolver:  rv,
		manager:   mgr,
		opts:      opts,
		evaluator: ev,
	}
}

// Handler returns the front end's root handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	pingPath := "/ping"
	if config.Main != nil && config.Main.PingHandlerPath != "" {
		pingPath = config.Main.PingHandlerPath
	}
	mux.HandleFunc(pingPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("pong"))
	})
	mux.HandleFunc("/", s.handleRequest)
	return mux
}

// ListenAndServe starts the front end on the configured address and blocks
// until the listener fails or Shutdown is called
func (s *Server) ListenAndServe() error {
	address := fmt.Sprintf("%s:%d", config.Frontend.ListenAddress, config.Frontend.ListenPort)
	s.srv = &http.Server{
		Addr:         address,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(config.Frontend.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(config.Frontend.WriteTimeoutSecs) * time.Second,
	}
	log.Info("frontend http server starting", log.Pairs{"address": address})
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the front end
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	host := r.Host
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}

	st := s.resolver.Resolve(host)
	var siteID string
	if st != nil {
		siteID = st.ID
	}

	sess := s.manager.Find(r, siteID)
	in := interpreter.New(s.opts, s.annotator)

	status := s.respond(w, r, in, sess, host)

	if err := sess.Save(false); err == nil {
		log.Debug("session saved", log.Pairs{"id": sess.ID()})
	}

	observeRequest(siteID, r.Method, status, time.Since(start))
}

// respond runs resolution and writes the response, returning the status sent
func (s *Server) respond(w http.ResponseWriter, r *http.Request,
	in *interpreter.Interpreter, sess *session.Session, host string) int {

	err := in.Resolve(r.URL.Path, host, s.resolver)

	if !sess.IsDestroyed() {
		http.SetCookie(w, sess.Cookie())
	}

	if err != nil {
		if se, ok := errors.AsStatusError(err); ok {
			http.Error(w, se.Message, se.Status)
			return se.Status
		}
		log.Error("request resolution failed", log.Pairs{
			"uri": r.URL.Path, "host": host, "detail": err.Error()})
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return http.StatusInternalServerError
	}

	if in.Redirect() != "" {
		http.Redirect(w, r, in.Redirect(), in.Status())
		return in.Status()
	}

	if in.IsDirectoryRequest() {
		return s.renderListing(w, r, in)
	}

	if in.Status() == http.StatusNotFound {
		http.NotFound(w, r)
		return http.StatusNotFound
	}

	// rewrite params are request-scoped and travel to the evaluator as an
	// argument; they are never written into the persisted session bag
	body, rerr := s.evaluator.Render(in.File(), in.HTML(), in.RewriteParams(), sess)
	if rerr != nil {
		log.Error("evaluator render failed", log.Pairs{
			"file": in.File(), "detail": rerr.Error()})
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", s.contentType(in, body))
	w.WriteHeader(in.Status())
	w.Write(body)
	return in.Status()
}

// contentType selects the response content type: a file annotation wins,
// then the file extension, then content sniffing
func (s *Server) contentType(in *interpreter.Interpreter, body []byte) string {
	if a := in.Annotations(); a != nil {
		if ct, ok := a[AnnotationContentType]; ok && ct != "" {
			return ct
		}
	}
	if in.File() != "" {
		if ct := mime.TypeByExtension(filepath.Ext(in.File())); ct != "" {
			return ct
		}
	}
	return http.DetectContentType(body)
}

func observeRequest(siteID, method string, status int, elapsed time.Duration) {
	if metrics.FrontendRequestStatus == nil {
		return
	}
	code := strconv.Itoa(status)
	metrics.FrontendRequestStatus.WithLabelValues(siteID, method, code).Inc()
	metrics.FrontendRequestDuration.WithLabelValues(siteID, method, code).Observe(elapsed.Seconds())
}
