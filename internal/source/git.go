package source

import (
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Revision identifies the git checkout an imported directory came from.
type Revision struct {
	Commit string `json:"commit"`
	Branch string `json:"branch,omitempty"`
	Remote string `json:"remote,omitempty"`
}

// gitRevision returns the checkout containing dir, or nil when dir is not
// inside a git work tree or the repository has no commits yet.
func gitRevision(dir string) *Revision {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil
	}

	head, err := repo.Head()
	if err != nil {
		return nil
	}

	rev := &Revision{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		rev.Branch = head.Name().Short()
	}

	remote, err := repo.Remote("origin")
	if err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			rev.Remote = urls[0]
		}
	}
	return rev
}

var githubRemotePattern = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/]+?)(?:\.git)?/?$`)

// parseGitHubRemote extracts owner and repository from a GitHub remote URL.
// Supports: git@github.com:owner/repo.git, https://github.com/owner/repo.git
func parseGitHubRemote(url string) (owner, repo string, ok bool) {
	m := githubRemotePattern.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
