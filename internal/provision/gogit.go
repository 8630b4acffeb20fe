package provision

import (
	"bytes"
	"context"

	"github.com/go-git/go-git/v5"
)

// GoGitCloner clones in-process. go-git removes a destination it created when
// the clone fails, unlike the git CLI which may leave a partial directory.
type GoGitCloner struct{}

func (GoGitCloner) Clone(ctx context.Context, url, dir string) (string, error) {
	var progress bytes.Buffer
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:      url,
		Progress: &progress,
	})
	if err != nil {
		return "", &CloneError{
			Engine: EngineGoGit,
			URL:    url,
			Dir:    dir,
			Stderr: progress.String(),
			Cause:  err,
		}
	}
	return progress.String(), nil
}
