// Package mockregister implements an in-process imitation of the register
// API surface, backed by fixtures, for tests and the local harness binary.
package mockregister

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
)

const (
	statusSearchOK    = "FSR-API-04-01-00"
	messageSearchOK   = "Ok. Search successful"
	statusSearchNone  = "FSR-API-04-01-11"
	messageSearchNone = "No search result found"
	statusResourceOK  = "FSR-API-01-01-00"
	messageResourceOK = "Ok. Resource found"
)

// Call records one request made to the mock register.
type Call struct {
	Method string
	Path   string
	Query  string
}

// SearchEntry is one searchable record in the fixture index.
type SearchEntry struct {
	Type            string `json:"type"` // firm, individual or fund
	Name            string `json:"name"`
	ReferenceNumber string `json:"reference_number"`
	Status          string `json:"status"`
}

// Fixtures is the JSON file shape accepted by LoadFixtureFile.
type Fixtures struct {
	Search []SearchEntry `json:"search"`

	// Resources maps API-relative paths such as "Firm/113849/Names" to the
	// Data payload served for them.
	Resources map[string]json.RawMessage `json:"resources"`
}

// Server serves a fixture-backed subset of the register API.
type Server struct {
	mu    sync.Mutex
	calls []Call

	expectedEmail string
	expectedKey   string

	search    []SearchEntry
	resources map[string]json.RawMessage
}

// New constructs an empty mock register.
func New() *Server {
	return &Server{
		resources: make(map[string]json.RawMessage),
	}
}

// RequireAuth makes the server reject requests whose X-Auth-Email/X-Auth-Key
// pair does not match. Empty values disable the check.
func (s *Server) RequireAuth(email, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expectedEmail = strings.TrimSpace(email)
	s.expectedKey = strings.TrimSpace(key)
}

// AddSearchResult adds one record to the search index.
func (s *Server) AddSearchResult(e SearchEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = append(s.search, e)
}

// SetResource stores the Data payload served for an API-relative resource
// path such as "Firm/113849/Names" or "CommonSearch/RM". A nil data stores a
// JSON null payload, which the real register uses for clean disciplinary
// histories.
func (s *Server) SetResource(path string, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		// Fixture values are test-authored; a marshal failure is a bug there.
		panic(fmt.Sprintf("mockregister: marshal fixture for %q: %v", path, err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[strings.Trim(path, "/")] = b
}

// LoadFixtureFile populates the server from a JSON fixtures file.
func (s *Server) LoadFixtureFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixtures file: %w", err)
	}
	var f Fixtures
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("parse fixtures JSON: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = append(s.search, f.Search...)
	for p, data := range f.Resources {
		s.resources[strings.Trim(p, "/")] = data
	}
	return nil
}

// Calls returns a snapshot of requests seen so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Handler returns an http.Handler serving the mock API. Paths are accepted
// both at the root and under the real service prefix /services/V0.1.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.route)
	return mux
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if !s.authorize(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/services/V0.1")
	path = strings.Trim(path, "/")
	switch {
	case path == "Search":
		s.handleSearch(w, r)
	case path == "CommonSearch":
		s.handleCommonSearch(w, r)
	default:
		s.handleResource(w, r, path)
	}
}

func (s *Server) recordCall(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery})
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	email, key := s.expectedEmail, s.expectedKey
	s.mu.Unlock()

	if email == "" && key == "" {
		return true
	}
	if r.Header.Get("X-Auth-Email") != email || r.Header.Get("X-Auth-Key") != key {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	typ := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type")))
	if q == "" || typ == "" {
		http.Error(w, "q and type parameters are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	var matches []SearchEntry
	for _, e := range s.search {
		if strings.EqualFold(e.Type, typ) && strings.Contains(strings.ToLower(e.Name), strings.ToLower(q)) {
			matches = append(matches, e)
		}
	}
	s.mu.Unlock()

	if len(matches) == 0 {
		writeEnvelope(w, envelope{Status: statusSearchNone, Message: messageSearchNone})
		return
	}

	records := make([]map[string]string, 0, len(matches))
	for _, m := range matches {
		records = append(records, map[string]string{
			"Name":                           m.Name,
			"Reference Number":               m.ReferenceNumber,
			"Status":                         m.Status,
			"Type of business or Individual": typeLabel(m.Type),
			"URL":                            recordURL(m),
		})
	}
	writeEnvelope(w, envelope{
		Status: statusSearchOK,
		ResultInfo: map[string]string{
			"page":        "1",
			"per_page":    "20",
			"total_count": strconv.Itoa(len(records)),
		},
		Message: messageSearchOK,
		Data:    records,
	})
}

func (s *Server) handleCommonSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		http.Error(w, "q parameter is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	data, ok := s.resources["CommonSearch/"+q]
	s.mu.Unlock()

	if !ok {
		writeEnvelope(w, envelope{Status: statusSearchNone, Message: messageSearchNone})
		return
	}
	writeEnvelope(w, envelope{Status: statusSearchOK, Message: messageSearchOK, Data: data})
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request, path string) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || !isKnownRoot(parts[0]) {
		http.NotFound(w, r)
		return
	}
	for _, part := range parts {
		if !isSafeSegment(part) {
			http.Error(w, "invalid path segment", http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	data, ok := s.resources[path]
	s.mu.Unlock()

	// The real register answers 200 with an empty envelope for unknown
	// references, so absent fixtures are served the same way.
	if !ok {
		writeEnvelope(w, envelope{Status: statusResourceOK, Message: messageResourceOK})
		return
	}
	writeEnvelope(w, envelope{Status: statusResourceOK, Message: messageResourceOK, Data: data})
}

// envelope mirrors the register's response shape. Data is omitted entirely
// when nil so "no data" responses look like the real thing.
type envelope struct {
	Status     string            `json:"Status"`
	ResultInfo map[string]string `json:"ResultInfo,omitempty"`
	Message    string            `json:"Message"`
	Data       any               `json:"Data,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(env)
}

func typeLabel(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "firm":
		return "Firm"
	case "individual":
		return "Individual"
	case "fund":
		return "Fund"
	}
	return strings.TrimSpace(t)
}

func recordURL(e SearchEntry) string {
	root := "Firm"
	switch strings.ToLower(strings.TrimSpace(e.Type)) {
	case "individual":
		root = "Individuals"
	case "fund":
		root = "CIS"
	}
	return fmt.Sprintf("https://register.fca.org.uk/services/V0.1/%s/%s", root, e.ReferenceNumber)
}

func isKnownRoot(root string) bool {
	switch root {
	case "Firm", "Individuals", "CIS":
		return true
	}
	return false
}

func isSafeSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\")
}
