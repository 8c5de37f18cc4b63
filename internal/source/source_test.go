package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/contextfile"
	"github.com/Buooy/ergon-pm/internal/project"
	"github.com/Buooy/ergon-pm/internal/storage"
)

type fixture struct {
	projects *project.Store
	files    *contextfile.Store
	project  *project.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	layout, err := storage.NewLayout(t.TempDir())
	require.NoError(t, err)
	projects, err := project.NewStore(layout, zap.NewNop())
	require.NoError(t, err)
	files, err := contextfile.NewStore(layout, zap.NewNop())
	require.NoError(t, err)

	p, err := projects.Create(context.Background(), "Demo", "")
	require.NoError(t, err)
	return &fixture{projects: projects, files: files, project: p}
}

func (fx *fixture) addSource(t *testing.T, src project.ContextSource) string {
	t.Helper()

	sources := append([]project.ContextSource{}, fx.project.ContextSources...)
	sources = append(sources, src)
	updated, err := fx.projects.Update(context.Background(), fx.project.Slug, project.Patch{ContextSources: &sources})
	require.NoError(t, err)
	fx.project = updated
	return updated.ContextSources[len(updated.ContextSources)-1].ID
}

func itemPaths(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Path)
	}
	sort.Strings(out)
	return out
}

func TestRegistry_Types(t *testing.T) {
	fx := newFixture(t)
	r := NewRegistry(fx.projects, fx.files, Options{}, nil)

	types := r.Types()
	assert.ElementsMatch(t, []project.SourceType{project.SourceFilesystem, project.SourceGitHub, project.SourceGDrive}, types)

	_, err := r.Adapter("dropbox", "demo")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRegistry_Open_Errors(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	r := NewRegistry(fx.projects, fx.files, Options{}, nil)

	_, err := r.Open(ctx, "ghost", "x")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = r.Open(ctx, fx.project.Slug, "no-such-source")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	disabled := fx.addSource(t, project.ContextSource{Type: project.SourceFilesystem, Enabled: false})
	_, err = r.Open(ctx, fx.project.Slug, disabled)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	unknown := fx.addSource(t, project.ContextSource{Type: "dropbox", Enabled: true})
	_, err = r.Open(ctx, fx.project.Slug, unknown)
	assert.ErrorIs(t, err, ErrUnsupported)

	drive := fx.addSource(t, project.ContextSource{Type: project.SourceGDrive, Enabled: true})
	_, err = r.Sync(ctx, fx.project.Slug, drive)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFilesystem_DefaultSourceExposesOwnTree(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	r := NewRegistry(fx.projects, fx.files, Options{}, nil)

	_, err := fx.files.Upsert(ctx, fx.project.Slug, "guides/setup.md", contextfile.Fields{Title: "Setup", Content: "body"})
	require.NoError(t, err)

	a, err := r.Open(ctx, fx.project.Slug, fx.project.ContextSources[0].ID)
	require.NoError(t, err)
	assert.Equal(t, project.SourceFilesystem, a.Type())

	items, err := a.FetchContext(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "guides/setup.md", items[0].Path)
	assert.Equal(t, "Setup", items[0].Title)
	assert.Equal(t, "body", items[0].Content)
	assert.Equal(t, contextfile.DefaultType, items[0].Metadata["type"])

	res, err := r.Sync(ctx, fx.project.Slug, fx.project.ContextSources[0].ID)
	require.NoError(t, err)
	assert.Empty(t, res.Written)
	assert.Equal(t, "filesystem", res.Type)
}

func TestFilesystem_ImportsExternalDirectory(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	ext := t.TempDir()
	r := NewRegistry(fx.projects, fx.files, Options{AllowedDirs: []string{ext}}, nil)

	require.NoError(t, os.MkdirAll(filepath.Join(ext, "docs", "drafts"), 0700))
	require.NoError(t, os.MkdirAll(filepath.Join(ext, "node_modules", "pkg"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(ext, "README.md"), []byte("---\ntitle: Readme\ntags: [intro]\n---\nHello"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(ext, "docs", "api.md"), []byte("# API"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(ext, "docs", "drafts", "wip.md"), []byte("wip"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(ext, "docs", "diagram.png"), []byte("png"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(ext, "node_modules", "pkg", "readme.md"), []byte("dep"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(ext, ".ergonignore"), []byte("drafts/\nnode_modules/\n"), 0600))

	id := fx.addSource(t, project.ContextSource{
		Type:    project.SourceFilesystem,
		Enabled: true,
		Config:  map[string]any{"path": ext, "target": "handbook"},
	})

	res, err := r.Sync(ctx, fx.project.Slug, id)
	require.NoError(t, err)
	sort.Strings(res.Written)
	assert.Equal(t, []string{"handbook/README.md", "handbook/docs/api.md"}, res.Written)

	readme, err := fx.files.Get(ctx, fx.project.Slug, "handbook/README.md")
	require.NoError(t, err)
	assert.Equal(t, "Readme", readme.Title)
	assert.Equal(t, []string{"intro"}, readme.Tags)
	assert.Equal(t, "Hello", readme.Content)

	api, err := fx.files.Get(ctx, fx.project.Slug, "handbook/docs/api.md")
	require.NoError(t, err)
	assert.Equal(t, "api", api.Title)
}

func TestFilesystem_Connect_BadPath(t *testing.T) {
	fx := newFixture(t)
	dir := t.TempDir()
	a := NewFilesystem(fx.files, fx.project.Slug, []string{dir}, nil)

	err := a.Connect(context.Background(), map[string]any{"path": filepath.Join(dir, "missing")})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestFilesystem_Connect_OutsideAllowedDirs(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	allowed := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.md"), []byte("host-only secret\n"), 0600))

	tests := []struct {
		name    string
		allowed []string
		path    string
	}{
		{"no allowed dirs", nil, outside},
		{"sibling dir", []string{allowed}, outside},
		{"traversal out of allowed", []string{allowed}, filepath.Join(allowed, "..", filepath.Base(outside))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewFilesystem(fx.files, fx.project.Slug, tt.allowed, nil)
			err := a.Connect(ctx, map[string]any{"path": tt.path})
			assert.ErrorIs(t, err, storage.ErrInvalidInput)
		})
	}

	link := filepath.Join(allowed, "escape")
	require.NoError(t, os.Symlink(outside, link))
	a := NewFilesystem(fx.files, fx.project.Slug, []string{allowed}, nil)
	assert.ErrorIs(t, a.Connect(ctx, map[string]any{"path": link}), storage.ErrInvalidInput)

	r := NewRegistry(fx.projects, fx.files, Options{AllowedDirs: []string{allowed}}, nil)
	id := fx.addSource(t, project.ContextSource{
		Type:    project.SourceFilesystem,
		Enabled: true,
		Config:  map[string]any{"path": outside},
	})
	_, err := r.Sync(ctx, fx.project.Slug, id)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	files, err := fx.files.List(ctx, fx.project.Slug, "")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFilesystem_Connect_NestedAllowedDir(t *testing.T) {
	fx := newFixture(t)
	allowed := t.TempDir()
	nested := filepath.Join(allowed, "team", "docs")
	require.NoError(t, os.MkdirAll(nested, 0700))

	a := NewFilesystem(fx.files, fx.project.Slug, []string{allowed}, nil)
	require.NoError(t, a.Connect(context.Background(), map[string]any{"path": nested}))
}

// fakeGitHub serves a tiny repository through the contents API.
func fakeGitHub(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()

	const prefix = "/repos/acme/handbook/contents/"
	mux := http.NewServeMux()
	mux.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		p := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
		if content, ok := files[p]; ok {
			writeJSON(t, w, http.StatusOK, map[string]any{
				"type":     "file",
				"name":     filepath.Base(p),
				"path":     p,
				"encoding": "base64",
				"content":  base64.StdEncoding.EncodeToString([]byte(content)),
			})
			return
		}

		seen := map[string]bool{}
		var entries []map[string]any
		for name := range files {
			if p != "" && !strings.HasPrefix(name, p+"/") {
				continue
			}
			rest := strings.TrimPrefix(strings.TrimPrefix(name, p), "/")
			child, _, isDir := strings.Cut(rest, "/")
			full := strings.TrimPrefix(p+"/"+child, "/")
			if seen[full] {
				continue
			}
			seen[full] = true
			typ := "file"
			if isDir {
				typ = "dir"
			}
			entries = append(entries, map[string]any{"type": typ, "name": child, "path": full})
		}
		if entries == nil {
			writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "Not Found"})
			return
		}
		writeJSON(t, w, http.StatusOK, entries)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestGitHub_Sync(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	srv := fakeGitHub(t, map[string]string{
		"docs/intro.md":      "---\ntitle: Intro\n---\nWelcome",
		"docs/guides/ops.md": "Runbook",
		"docs/logo.svg":      "<svg/>",
		"other/unrelated.md": "skip",
	})

	r := NewRegistry(fx.projects, fx.files, Options{GitHub: GitHubOptions{
		Token:             "secret",
		BaseURL:           srv.URL,
		RequestsPerSecond: 1000,
		HTTPClient:        srv.Client(),
	}}, nil)

	id := fx.addSource(t, project.ContextSource{
		Type:    project.SourceGitHub,
		Enabled: true,
		Config:  map[string]any{"owner": "acme", "repo": "handbook", "path": "docs"},
	})

	a, err := r.Open(ctx, fx.project.Slug, id)
	require.NoError(t, err)
	items, err := a.FetchContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"guides/ops.md", "intro.md"}, itemPaths(items))

	res, err := r.Sync(ctx, fx.project.Slug, id)
	require.NoError(t, err)
	sort.Strings(res.Written)
	assert.Equal(t, []string{"github/handbook/guides/ops.md", "github/handbook/intro.md"}, res.Written)

	intro, err := fx.files.Get(ctx, fx.project.Slug, "github/handbook/intro.md")
	require.NoError(t, err)
	assert.Equal(t, "Intro", intro.Title)
	assert.Equal(t, "Welcome", intro.Content)
}

func TestGitHub_MissingPath(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	srv := fakeGitHub(t, map[string]string{"docs/a.md": "x"})

	a := NewGitHub(fx.files, fx.project.Slug, GitHubOptions{Token: "secret", BaseURL: srv.URL, HTTPClient: srv.Client()}, nil)
	require.NoError(t, a.Connect(ctx, map[string]any{"owner": "acme", "repo": "handbook", "path": "nope"}))

	_, err := a.FetchContext(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGitHub_Connect_RequiresRepo(t *testing.T) {
	fx := newFixture(t)
	a := NewGitHub(fx.files, fx.project.Slug, GitHubOptions{}, nil)

	err := a.Connect(context.Background(), map[string]any{"owner": "acme"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
