package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dgallion1/planmirror/internal/pmtree"
	"github.com/dgallion1/planmirror/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the live-preview HTTP server. It holds a single current
// document that browser editors poll and push edits back to.
type Server struct {
	router chi.Router
	store  *store.Store
	log    *slog.Logger

	mu  sync.RWMutex
	doc *pmtree.Document
}

// NewServer creates and configures the HTTP server. The store is
// optional; without it the document listing endpoints return 404.
func NewServer(st *store.Store, log *slog.Logger) *Server {
	s := &Server{
		store: st,
		log:   log,
		doc:   pmtree.NewDocument(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetDocument replaces the current preview document.
func (s *Server) SetDocument(doc *pmtree.Document) {
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(CORS)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Get("/api/get-doc", s.handleGetDoc)
	r.Post("/api/update-doc", s.handleUpdateDoc)
	r.Post("/api/append-to-doc", s.handleAppendToDoc)

	r.Get("/api/documents", s.handleListDocuments)
	r.Get("/api/documents/{docID}", s.handleGetDocument)
	r.Post("/api/documents/{docID}/load", s.handleLoadDocument)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleGetDoc returns the current document wrapped in {"content": ...},
// the shape TipTap-style frontends expect.
func (s *Server) handleGetDoc(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	doc := s.doc
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"content": doc})
}

// handleUpdateDoc replaces the current document wholesale.
func (s *Server) handleUpdateDoc(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Doc *pmtree.Document `json:"doc"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		jsonError(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if payload.Doc == nil {
		jsonError(w, "doc field is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.doc = payload.Doc
	s.mu.Unlock()

	writeStatusOK(w)
}

// handleAppendToDoc appends a list of block nodes to the current
// document's content.
func (s *Server) handleAppendToDoc(w http.ResponseWriter, r *http.Request) {
	var nodes []*pmtree.Node
	if err := json.NewDecoder(r.Body).Decode(&nodes); err != nil {
		jsonError(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	content := s.doc.Content
	for _, n := range nodes {
		content = pmtree.Append(content, n)
	}
	s.doc = s.doc.WithContent(content)
	s.mu.Unlock()

	writeStatusOK(w)
}

// handleListDocuments lists persisted documents.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "no document store configured", http.StatusNotFound)
		return
	}
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": docs})
}

// handleGetDocument returns a persisted document by id.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadFromStore(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"content": doc})
}

// handleLoadDocument loads a persisted document into the live preview.
func (s *Server) handleLoadDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadFromStore(w, r)
	if !ok {
		return
	}
	s.SetDocument(doc)
	writeStatusOK(w)
}

func (s *Server) loadFromStore(w http.ResponseWriter, r *http.Request) (*pmtree.Document, bool) {
	if s.store == nil {
		jsonError(w, "no document store configured", http.StatusNotFound)
		return nil, false
	}
	docID := chi.URLParam(r, "docID")
	doc, err := s.store.LoadDocument(r.Context(), docID)
	if err != nil {
		jsonError(w, "failed to load document: "+err.Error(), http.StatusNotFound)
		return nil, false
	}
	return doc, true
}

func writeStatusOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
