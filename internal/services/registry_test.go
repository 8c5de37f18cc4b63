package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Buooy/ergon-pm/internal/config"
	"github.com/Buooy/ergon-pm/internal/contextfile"
	"github.com/Buooy/ergon-pm/internal/project"
	"github.com/Buooy/ergon-pm/internal/source"
)

func TestNewRegistry_Empty(t *testing.T) {
	reg := NewRegistry(Options{})
	assert.Nil(t, reg.Layout())
	assert.Nil(t, reg.Projects())
	assert.Nil(t, reg.ContextFiles())
	assert.Nil(t, reg.Generated())
	assert.Nil(t, reg.Sources())
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	reg, err := Build(dir, source.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, dir, reg.Layout().Root())

	p, err := reg.Projects().Create(ctx, "Wired", "")
	require.NoError(t, err)

	_, err = reg.ContextFiles().Upsert(ctx, p.Slug, "a.md", contextfile.Fields{Content: "x"})
	require.NoError(t, err)

	doc, err := reg.Generated().Append(ctx, p.Slug, "prd", "body", []string{"a.md"})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Filename)

	res, err := reg.Sources().Sync(ctx, p.Slug, p.ContextSources[0].ID)
	require.NoError(t, err)
	assert.Empty(t, res.Written)
}

func TestBuild_RequiresDataDir(t *testing.T) {
	_, err := Build("", source.Options{}, nil)
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Data:   config.DataConfig{Dir: dir},
		GitHub: config.GitHubConfig{Token: config.Secret("ghp_test"), RequestsPerSecond: 2},
	}

	reg, err := FromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, dir, reg.Layout().Root())
	assert.Contains(t, reg.Sources().Types(), project.SourceGitHub)
}

func TestFromConfig_AllowedDirs(t *testing.T) {
	ctx := context.Background()
	ext := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ext, "notes.md"), []byte("# Notes"), 0600))

	cfg := &config.Config{
		Data:    config.DataConfig{Dir: t.TempDir()},
		Sources: config.SourcesConfig{AllowedDirs: []string{ext}},
	}
	reg, err := FromConfig(cfg, nil)
	require.NoError(t, err)

	p, err := reg.Projects().Create(ctx, "Imports", "")
	require.NoError(t, err)
	sources := append(p.ContextSources, project.ContextSource{
		ID:      "ext",
		Type:    project.SourceFilesystem,
		Enabled: true,
		Config:  map[string]any{"path": ext},
	})
	_, err = reg.Projects().Update(ctx, p.Slug, project.Patch{ContextSources: &sources})
	require.NoError(t, err)

	res, err := reg.Sources().Sync(ctx, p.Slug, "ext")
	require.NoError(t, err)
	assert.Equal(t, []string{"imported/notes.md"}, res.Written)
}
