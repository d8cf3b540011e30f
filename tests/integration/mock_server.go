package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"tagfinder/pkg/tumblr"
)

// MockTumblrServer serves the two v2 endpoints the finder uses from
// in-memory fixtures
type MockTumblrServer struct {
	server *httptest.Server

	mu         sync.RWMutex
	posts      map[string][]tumblr.Post
	blogs      map[string]tumblr.BlogInfo
	blogErrors map[string]int
	tagErrors  map[string]int
	infoHits   map[string]int

	taggedCalls   int32
	infoCalls     int32
	unsignedCalls int32
}

func NewMockTumblrServer() *MockTumblrServer {
	m := &MockTumblrServer{
		posts:      make(map[string][]tumblr.Post),
		blogs:      make(map[string]tumblr.BlogInfo),
		blogErrors: make(map[string]int),
		tagErrors:  make(map[string]int),
		infoHits:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(tumblr.TaggedEndpoint, m.handleTagged)
	mux.HandleFunc("/v2/blog/", m.handleBlogInfo)

	m.server = httptest.NewServer(mux)
	return m
}

func (m *MockTumblrServer) URL() string { return m.server.URL }

func (m *MockTumblrServer) Close() { m.server.Close() }

// AddPost registers a post under tag. Posts are served newest first.
func (m *MockTumblrServer) AddPost(tag string, p tumblr.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[tag] = append(m.posts[tag], p)
	sort.Slice(m.posts[tag], func(i, j int) bool {
		return m.posts[tag][i].Timestamp > m.posts[tag][j].Timestamp
	})
}

func (m *MockTumblrServer) AddBlog(info tumblr.BlogInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blogs[info.Name] = info
}

// FailBlog makes the info endpoint answer status for blog
func (m *MockTumblrServer) FailBlog(blog string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blogErrors[blog] = status
}

// FailTag makes every tagged search for tag answer status
func (m *MockTumblrServer) FailTag(tag string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tagErrors[tag] = status
}

func (m *MockTumblrServer) TaggedCalls() int { return int(atomic.LoadInt32(&m.taggedCalls)) }

func (m *MockTumblrServer) InfoCalls() int { return int(atomic.LoadInt32(&m.infoCalls)) }

// UnsignedCalls counts requests without an OAuth Authorization header
func (m *MockTumblrServer) UnsignedCalls() int { return int(atomic.LoadInt32(&m.unsignedCalls)) }

// InfoHits is how often blog's profile was requested
func (m *MockTumblrServer) InfoHits(blog string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.infoHits[blog]
}

func (m *MockTumblrServer) checkAuth(r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
		atomic.AddInt32(&m.unsignedCalls, 1)
	}
}

func (m *MockTumblrServer) handleTagged(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.taggedCalls, 1)
	m.checkAuth(r)

	q := r.URL.Query()
	tag := q.Get("tag")
	if tag == "" {
		writeError(w, http.StatusBadRequest, "Bad Request", "tag is required")
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > tumblr.MaxPageSize {
		limit = tumblr.MaxPageSize
	}
	before, _ := strconv.ParseInt(q.Get("before"), 10, 64)

	m.mu.RLock()
	if status := m.tagErrors[tag]; status != 0 {
		m.mu.RUnlock()
		writeError(w, status, http.StatusText(status), "fixture failure")
		return
	}
	page := make([]tumblr.Post, 0, limit)
	for _, p := range m.posts[tag] {
		if before > 0 && p.Timestamp >= before {
			continue
		}
		page = append(page, p)
		if len(page) == limit {
			break
		}
	}
	m.mu.RUnlock()

	writeOK(w, page)
}

func (m *MockTumblrServer) handleBlogInfo(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.infoCalls, 1)
	m.checkAuth(r)

	id, ok := strings.CutSuffix(strings.TrimPrefix(r.URL.Path, "/v2/blog/"), "/info")
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found", "unknown endpoint")
		return
	}
	name := strings.TrimSuffix(id, ".tumblr.com")

	m.mu.Lock()
	m.infoHits[name]++
	status := m.blogErrors[name]
	info, found := m.blogs[name]
	m.mu.Unlock()

	switch {
	case status != 0:
		writeError(w, status, http.StatusText(status), "fixture failure")
	case !found:
		writeError(w, http.StatusNotFound, "Not Found", "blog not found")
	default:
		writeOK(w, map[string]interface{}{"blog": info})
	}
}

func writeOK(w http.ResponseWriter, response interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"meta":     map[string]interface{}{"status": http.StatusOK, "msg": "OK"},
		"response": response,
	})
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"meta":     map[string]interface{}{"status": status, "msg": msg},
		"response": []interface{}{},
		"errors":   []map[string]string{{"title": msg, "detail": detail}},
	})
}
