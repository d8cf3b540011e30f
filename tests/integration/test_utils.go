package integration

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tagfinder/pkg/config"
	"tagfinder/pkg/logger"
	"tagfinder/pkg/models"
	"tagfinder/pkg/scraper"
	"tagfinder/pkg/tumblr"
	"tagfinder/pkg/ui"
)

// TestHelper wires a scraper to a MockTumblrServer inside a temp directory
type TestHelper struct {
	t      *testing.T
	Server *MockTumblrServer
	Dir    string
	Logger *logger.TestLogger
	now    time.Time
}

func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()
	ui.Out = io.Discard

	server := NewMockTumblrServer()
	t.Cleanup(server.Close)

	return &TestHelper{
		t:      t,
		Server: server,
		Dir:    t.TempDir(),
		Logger: logger.NewTestLogger(),
		now:    time.Now(),
	}
}

// Config points a fresh configuration at the mock server with no delays
func (h *TestHelper) Config(themes ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Tumblr.BaseURL = h.Server.URL()
	cfg.Tumblr.ConsumerKey = "ckey"
	cfg.Tumblr.ConsumerSecret = "csecret"
	cfg.Tumblr.OAuthToken = "token"
	cfg.Tumblr.OAuthSecret = "tsecret"
	cfg.Tumblr.Timeout = 5 * time.Second

	cfg.Search.Themes = themes
	cfg.Search.PageDelay = 0
	cfg.Search.CandidateDelay = 0
	cfg.Output.BaseName = filepath.Join(h.Dir, "results")
	cfg.Output.Formats = []string{"json", "csv", "sqlite"}
	cfg.Progress.File = filepath.Join(h.Dir, "progress.json")
	return cfg
}

// Scraper builds a scraper that talks to the mock server over HTTP
func (h *TestHelper) Scraper(cfg *config.Config, opts ...scraper.Option) *scraper.Scraper {
	h.t.Helper()
	require.NoError(h.t, cfg.Validate())
	require.NoError(h.t, cfg.ValidateCredentials())

	view := ui.NewProgressDisplay(false)
	view.SetOutput(io.Discard)

	opts = append([]scraper.Option{
		scraper.WithView(view),
		scraper.WithLogger(h.Logger),
	}, opts...)
	s, err := scraper.New(cfg, opts...)
	require.NoError(h.t, err)
	return s
}

// Post adds a post by blog, age seconds older than the helper's clock
func (h *TestHelper) Post(tag, blog string, age int64, body string) {
	p := tumblr.Post{
		ID:        h.now.Unix() - age,
		Type:      "text",
		BlogName:  blog,
		Timestamp: h.now.Unix() - age,
	}
	if body != "" {
		p.Body = &body
	}
	h.Server.AddPost(tag, p)
}

// Blog adds an active blog profile with the given follower count
func (h *TestHelper) Blog(name string, followers int, description string, tags ...string) {
	updated := h.now.Add(-48 * time.Hour).Unix()
	h.Server.AddBlog(tumblr.BlogInfo{
		Name:           name,
		URL:            "https://" + name + ".tumblr.com/",
		Title:          name,
		Description:    description,
		Posts:          120,
		TotalFollowers: &followers,
		Updated:        &updated,
		Tags:           tags,
	})
}

func (h *TestHelper) ReadJSON(path string) []models.Profile {
	h.t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(h.t, err)

	var profiles []models.Profile
	require.NoError(h.t, json.Unmarshal(data, &profiles))
	return profiles
}

func names(profiles []models.Profile) []string {
	out := make([]string, len(profiles))
	for i, p := range profiles {
		out[i] = p.BlogName
	}
	return out
}
