package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"tagfinder/pkg/logger"
	"tagfinder/pkg/models"
	"tagfinder/pkg/ratelimit"
	"tagfinder/pkg/storage"
)

const (
	// CurrentVersion is written into every saved file
	CurrentVersion = 1

	// DefaultFile is used when no progress path is configured
	DefaultFile = "search_progress.json"
)

// Progress is a resumable snapshot of a search run
type Progress struct {
	DiscoveredBlogs map[string]models.Profile `json:"discovered_blogs"`
	BlogThemes      map[string][]string       `json:"blog_themes"`
	RateLimitStatus ratelimit.Status          `json:"rate_limit_status"`
	Timestamp       time.Time                 `json:"timestamp"`
	RunID           string                    `json:"run_id,omitempty"`
	Version         int                       `json:"version"`
}

// Themes returns every theme mentioned in the snapshot, sorted
func (p *Progress) Themes() []string {
	seen := make(map[string]struct{})
	for _, themes := range p.BlogThemes {
		for _, t := range themes {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Profiles returns the saved blogs sorted by name, each with its themes
// merged into ThemeMatched
func (p *Progress) Profiles() []models.Profile {
	names := make([]string, 0, len(p.DiscoveredBlogs))
	for name := range p.DiscoveredBlogs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.Profile, 0, len(names))
	for _, name := range names {
		prof := p.DiscoveredBlogs[name]
		prof.BlogName = name
		if themes := p.BlogThemes[name]; len(themes) > 0 {
			set := models.NewThemeSet()
			for _, t := range themes {
				set.Add(t)
			}
			prof.ThemeMatched = set.Joined()
		}
		out = append(out, prof)
	}
	return out
}

// Summary is what `status` prints about a progress file
type Summary struct {
	Path      string
	RunID     string
	Blogs     int
	Themes    []string
	Timestamp time.Time
	Age       time.Duration
	RateLimit ratelimit.Status
}

// Manager reads and writes one progress file
type Manager struct {
	path   string
	logger logger.Logger
}

// NewManager creates a manager for path. An empty path resolves to
// DefaultFile inside the per-user data directory.
func NewManager(path string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if path == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		path = filepath.Join(dataDir, DefaultFile)
	}
	if err := storage.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("failed to create progress directory: %w", err)
	}
	return &Manager{path: path, logger: log.WithField("component", "checkpoint")}, nil
}

func (m *Manager) Path() string { return m.path }

// Load reads the progress file. A missing file is not an error: it returns nil, nil.
func (m *Manager) Load() (*Progress, error) {
	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open progress file: %w", err)
	}
	defer file.Close()

	var p Progress
	if err := json.NewDecoder(file).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode progress file %s: %w", m.path, err)
	}
	if p.Version > CurrentVersion {
		return nil, fmt.Errorf("progress file version %d is newer than supported version %d", p.Version, CurrentVersion)
	}
	if p.DiscoveredBlogs == nil {
		p.DiscoveredBlogs = make(map[string]models.Profile)
	}
	if p.BlogThemes == nil {
		p.BlogThemes = make(map[string][]string)
	}

	m.logger.InfoWithFields("Progress loaded", map[string]interface{}{
		"path":        m.path,
		"blogs":       len(p.DiscoveredBlogs),
		"total_calls": p.RateLimitStatus.TotalCalls,
		"saved_at":    p.Timestamp,
	})
	return &p, nil
}

// Save writes p to a temporary file, syncs it and renames it over the
// previous snapshot, so a crash leaves either the old or the new file.
func (m *Manager) Save(p *Progress) error {
	p.Timestamp = time.Now()
	p.Version = CurrentVersion

	err := storage.WriteFile(m.path, func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(p); err != nil {
			return fmt.Errorf("failed to encode progress: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	m.logger.DebugWithFields("Progress saved", map[string]interface{}{
		"path":  m.path,
		"blogs": len(p.DiscoveredBlogs),
	})
	return nil
}

// Delete removes the progress file; a missing file is fine
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete progress file: %w", err)
	}
	m.logger.WithField("path", m.path).Info("Progress file deleted")
	return nil
}

func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Info summarizes the saved progress, or returns nil when there is none
func (m *Manager) Info() (*Summary, error) {
	p, err := m.Load()
	if err != nil || p == nil {
		return nil, err
	}
	return &Summary{
		Path:      m.path,
		RunID:     p.RunID,
		Blogs:     len(p.DiscoveredBlogs),
		Themes:    p.Themes(),
		Timestamp: p.Timestamp,
		Age:       time.Since(p.Timestamp),
		RateLimit: p.RateLimitStatus,
	}, nil
}

// Backup copies the current file to <path>.backup. Nothing to copy is not an error.
func (m *Manager) Backup() error {
	if !m.Exists() {
		return nil
	}
	if err := storage.CopyFile(m.path, m.path+".backup"); err != nil {
		return fmt.Errorf("failed to back up progress file: %w", err)
	}

	m.logger.Debug("Progress file backed up")
	return nil
}

// getDataDirectory returns the per-user data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "tagfinder")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "tagfinder")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			dataDir = filepath.Join(xdg, "tagfinder")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "tagfinder")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
