package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/IntelDash/internal/filter"
	"github.com/TobiSchelling/IntelDash/internal/pipeline"
	"github.com/TobiSchelling/IntelDash/internal/present"
	"github.com/TobiSchelling/IntelDash/internal/taxonomy"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Options configures a Server.
type Options struct {
	Title         string
	DefaultWindow filter.Window
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server is the HTTP server for the dashboard. Every page request runs a
// fresh refresh cycle.
type Server struct {
	pipeline      *pipeline.Pipeline
	title         string
	defaultWindow filter.Window
	gatherer      prometheus.Gatherer
	log           *slog.Logger
	pages         map[string]*template.Template
	router        chi.Router
}

// New creates a new Server.
func New(p *pipeline.Pipeline, opts Options) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":   renderMarkdown,
		"formatDate": formatDate,
		"join":       strings.Join,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone so {{define "content"}} does not collide.
	pageNames := []string{"index.html", "digest.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		pipeline:      p,
		title:         opts.Title,
		defaultWindow: opts.DefaultWindow,
		gatherer:      opts.Gatherer,
		log:           opts.Logger,
		pages:         pages,
	}
	if s.title == "" {
		s.title = "Client Intelligence Dashboard"
	}
	if s.defaultWindow == "" {
		s.defaultWindow = filter.RecentOnly
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	r.Get("/", s.handleIndex)
	r.Get("/digest", s.handleDigest)
	r.Get("/api/news", s.handleNews)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router = r
}

// criteriaFromQuery reads filter criteria from the query string:
// group, competitors, window, recent, q and category (repeatable).
func (s *Server) criteriaFromQuery(r *http.Request) (filter.Criteria, error) {
	q := r.URL.Query()
	c := filter.Criteria{
		Scope:           strings.TrimSpace(q.Get("group")),
		WithCompetitors: truthy(q.Get("competitors")),
		Search:          strings.TrimSpace(q.Get("q")),
	}
	if c.Scope == "" {
		c.Scope = taxonomy.ScopeAll
	}
	for _, cat := range q["category"] {
		if cat = strings.TrimSpace(cat); cat != "" {
			c.Categories = append(c.Categories, cat)
		}
	}

	switch {
	case q.Has("window"):
		w, err := filter.ParseWindow(q.Get("window"))
		if err != nil {
			return c, err
		}
		c.Window = w
	case truthy(q.Get("recent")):
		c.Window = filter.RecentOnly
	default:
		c.Window = s.defaultWindow
	}
	return c, nil
}

type windowOption struct {
	Value filter.Window
	Label string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	c, err := s.criteriaFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := s.pipeline.Run(r.Context(), c)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tax := s.pipeline.Engine().Taxonomy()
	windows := make([]windowOption, len(filter.Windows))
	for i, win := range filter.Windows {
		windows[i] = windowOption{Value: win, Label: win.Label()}
	}
	selected := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		selected[cat] = true
	}

	s.render(w, "index.html", map[string]any{
		"Title":       s.title,
		"Groups":      tax.Groups(),
		"Labels":      tax.Labels(),
		"Windows":     windows,
		"Criteria":    c,
		"Selected":    selected,
		"Failures":    res.FailedNames(),
		"View":        res.View,
		"Names":       len(res.Names),
		"GeneratedAt": res.GeneratedAt,
		"DigestURL":   digestURL(r.URL.RawQuery),
	})
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	c, err := s.criteriaFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := s.pipeline.Run(r.Context(), c)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	digest := present.Markdown(res.View, res.Meta(s.title))
	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(digest))
		return
	}

	s.render(w, "digest.html", map[string]any{
		"Title":  s.title,
		"Digest": digest,
	})
}

type failureResponse struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type newsResponse struct {
	Scope       string                `json:"scope"`
	Window      filter.Window         `json:"window"`
	GeneratedAt time.Time             `json:"generated_at"`
	Names       []string              `json:"names"`
	Total       int                   `json:"total"`
	Failures    []failureResponse     `json:"failures"`
	Sections    []present.SectionView `json:"sections"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	c, err := s.criteriaFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	res, err := s.pipeline.Run(r.Context(), c)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, taxonomy.ErrUnknownGroup) || errors.Is(err, taxonomy.ErrUnknownCategory) ||
			errors.Is(err, filter.ErrUnknownWindow) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	failures := make([]failureResponse, len(res.Failures))
	for i, f := range res.Failures {
		failures[i] = failureResponse{Name: f.Name, Error: f.Message()}
	}
	writeJSON(w, http.StatusOK, newsResponse{
		Scope:       c.Scope,
		Window:      c.Window,
		GeneratedAt: res.GeneratedAt,
		Names:       res.Names,
		Total:       res.View.Total,
		Failures:    failures,
		Sections:    res.View.Sections,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.log.Error("template not found", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		s.log.Error("rendering template", "template", name, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// digestURL links the digest for the current filters. The query comes from
// the request's own URL so only the path is fixed here.
func digestURL(rawQuery string) template.URL {
	if rawQuery == "" {
		return "/digest"
	}
	return template.URL("/digest?" + rawQuery) //nolint: gosec
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "undated"
	}
	return t.Format("Jan 02, 2006")
}

func truthy(raw string) bool {
	v, err := strconv.ParseBool(raw)
	if err == nil {
		return v
	}
	return strings.EqualFold(raw, "on") || strings.EqualFold(raw, "yes")
}

// Serve starts the HTTP server on the given port and shuts it down
// gracefully when ctx is cancelled.
func Serve(ctx context.Context, srv *Server, port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.log.Info("server listening", "url", "http://"+addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	srv.log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
