package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/Buooy/ergon-pm/internal/contextfile"
	"github.com/Buooy/ergon-pm/internal/frontmatter"
	"github.com/Buooy/ergon-pm/internal/project"
	"github.com/Buooy/ergon-pm/internal/sanitize"
	"github.com/Buooy/ergon-pm/internal/storage"
)

// GitHubOptions are process-wide settings for the github adapter.
type GitHubOptions struct {
	// Token authenticates API calls. A per-source "token" config overrides it.
	Token string

	// BaseURL points at a GitHub Enterprise or test API. Empty means github.com.
	BaseURL string

	// RequestsPerSecond caps API calls made by one sync. Zero means no limit.
	RequestsPerSecond float64

	// HTTPClient is the transport used for API calls.
	HTTPClient *http.Client
}

// GitHub serves the "github" source type: markdown files under a path of a
// repository, fetched through the contents API.
type GitHub struct {
	files   ContextStore
	project string
	opts    GitHubOptions
	logger  *zap.Logger

	client  *github.Client
	limiter *rate.Limiter
	owner   string
	repo    string
	root    string
	ref     string
}

// NewGitHub returns an unconnected github adapter for projectSlug.
func NewGitHub(files ContextStore, projectSlug string, opts GitHubOptions, logger *zap.Logger) *GitHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitHub{files: files, project: projectSlug, opts: opts, logger: logger}
}

func (g *GitHub) Type() project.SourceType { return project.SourceGitHub }

func (g *GitHub) Name() string { return "GitHub Repository" }

// Connect reads "owner" and "repo", or a "remote" URL naming both, and
// optionally "path", "ref" and "token".
func (g *GitHub) Connect(ctx context.Context, config map[string]any) error {
	g.owner = configString(config, "owner")
	g.repo = configString(config, "repo")
	if remote := configString(config, "remote"); remote != "" && (g.owner == "" || g.repo == "") {
		owner, repo, ok := parseGitHubRemote(remote)
		if !ok {
			return fmt.Errorf("%w: %q is not a github remote", storage.ErrInvalidInput, remote)
		}
		g.owner, g.repo = owner, repo
	}
	if g.owner == "" || g.repo == "" {
		return fmt.Errorf("%w: github source requires owner and repo", storage.ErrInvalidInput)
	}
	g.root = strings.Trim(sanitize.Path(configString(config, "path")), "/")
	g.ref = configString(config, "ref")

	token := configString(config, "token")
	if token == "" {
		token = g.opts.Token
	}

	httpClient := g.opts.HTTPClient
	if token != "" {
		if httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		}
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	g.client = github.NewClient(httpClient)

	if g.opts.BaseURL != "" {
		base := g.opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return fmt.Errorf("%w: github base url: %v", storage.ErrInvalidInput, err)
		}
		g.client.BaseURL = u
	}

	limit := rate.Inf
	if g.opts.RequestsPerSecond > 0 {
		limit = rate.Limit(g.opts.RequestsPerSecond)
	}
	g.limiter = rate.NewLimiter(limit, 1)
	return nil
}

// FetchContext walks the configured repository path and returns its
// markdown files.
func (g *GitHub) FetchContext(ctx context.Context) ([]Item, error) {
	if g.client == nil {
		return nil, errors.New("github source is not connected")
	}
	items := []Item{}
	if err := g.walk(ctx, g.root, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Sync writes the repository's markdown files under github/<repo>/ in the
// context tree.
func (g *GitHub) Sync(ctx context.Context) (*SyncResult, error) {
	items, err := g.FetchContext(ctx)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{Written: []string{}}
	for _, item := range items {
		dest := path.Join("github", g.repo, item.Path)
		saved, err := g.files.Upsert(ctx, g.project, dest, contextfile.Fields{
			Title:   item.Title,
			Type:    metaString(item.Metadata, "type"),
			Tags:    metaStrings(item.Metadata, "tags"),
			Content: item.Content,
		})
		if err != nil {
			return nil, fmt.Errorf("import %s: %w", item.Path, err)
		}
		res.Written = append(res.Written, saved.Path)
	}
	return res, nil
}

func (g *GitHub) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"owner":  map[string]any{"type": "string", "description": "Repository owner"},
			"repo":   map[string]any{"type": "string", "description": "Repository name"},
			"remote": map[string]any{"type": "string", "description": "Clone URL, used when owner and repo are not set"},
			"path":   map[string]any{"type": "string", "description": "Directory inside the repository"},
			"ref":    map[string]any{"type": "string", "description": "Branch, tag or commit"},
			"token":  map[string]any{"type": "string", "description": "Access token overriding the server default"},
		},
	}
}

func (g *GitHub) walk(ctx context.Context, p string, items *[]Item) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	file, dir, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, p,
		&github.RepositoryContentGetOptions{Ref: g.ref})
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s/%s/%s", storage.ErrNotFound, g.owner, g.repo, p)
		}
		return fmt.Errorf("fetch %s/%s/%s: %w", g.owner, g.repo, p, err)
	}

	if file != nil {
		if !sanitize.HasExtension(file.GetName(), storage.MarkdownExt) {
			return nil
		}
		raw, err := file.GetContent()
		if err != nil {
			return fmt.Errorf("decode %s: %w", file.GetPath(), err)
		}
		*items = append(*items, g.item(file.GetPath(), raw))
		return nil
	}

	for _, entry := range dir {
		switch entry.GetType() {
		case "dir":
			if err := g.walk(ctx, entry.GetPath(), items); err != nil {
				return err
			}
		case "file":
			if !sanitize.HasExtension(entry.GetName(), storage.MarkdownExt) {
				continue
			}
			if err := g.walk(ctx, entry.GetPath(), items); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *GitHub) item(repoPath, raw string) Item {
	rel := repoPath
	if g.root != "" {
		rel = strings.TrimPrefix(strings.TrimPrefix(repoPath, g.root), "/")
	}
	if rel == "" {
		rel = path.Base(repoPath)
	}

	meta, body, err := frontmatter.Decode(raw)
	if err != nil {
		g.logger.Debug("importing file with malformed header as plain text",
			zap.String("path", repoPath), zap.Error(err))
		meta, body = map[string]any{}, raw
	}

	title := metaString(meta, "title")
	if title == "" {
		title = contextfile.TitleFromPath(rel)
	}
	meta["repository"] = g.owner + "/" + g.repo
	meta["sourcePath"] = repoPath

	return Item{Title: title, Content: body, Metadata: meta, Path: rel}
}
