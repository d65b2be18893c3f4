package api

import (
	"log/slog"
	"net/http"

	"github.com/devraulu/scannr/pkg/crawler"
	"github.com/devraulu/scannr/pkg/storage"
)

// Server exposes the run-creation boundary and the read endpoints over the
// persisted records. Crawls launched here run as background goroutines; the
// HTTP caller is never blocked on a crawl.
type Server struct {
	router  *http.ServeMux
	store   storage.Storage
	crawler *crawler.Crawler
}

func NewServer(store storage.Storage, c *crawler.Crawler) *Server {
	server := &Server{
		router:  http.NewServeMux(),
		store:   store,
		crawler: c,
	}
	server.router.HandleFunc("POST /runs", server.handleCreateRun)
	server.router.HandleFunc("GET /runs", server.handleListRuns)
	server.router.HandleFunc("GET /runs/{id}", server.handleGetRun)
	server.router.HandleFunc("GET /runs/{id}/pages", server.handleListPages)
	server.router.HandleFunc("GET /pages/{id}/matches", server.handleListMatches)
	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Start(addr string) error {
	slog.Info("starting api server", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}
