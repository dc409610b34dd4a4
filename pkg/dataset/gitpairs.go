package dataset

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/hashicorp/go-hclog"

	"github.com/prefixsec/prefixsec/pkg/schema"
)

// GitPairsName is the registry name of the commit-mining loader.
const GitPairsName = "git-pairs"

func init() {
	MustRegister(GitPairsName, func(opts Options) (Loader, error) {
		return NewGitPairsLoader(opts.DataDir, opts.Logger), nil
	})
}

// fixCommitPattern matches commit subjects announcing a security fix and
// captures an optional CWE identifier.
var fixCommitPattern = regexp.MustCompile(`(?i)\b(fix|patch|prevent|sanitize)\b.*?(CWE-\d{2,4})?`)

var cwePattern = regexp.MustCompile(`(?i)CWE-\d{2,4}`)

// extensionLanguages maps source file extensions to the pipeline languages.
var extensionLanguages = map[string]string{
	".py":   schema.LanguagePython,
	".java": schema.LanguageJava,
	".cpp":  schema.LanguageCPP,
	".cc":   schema.LanguageCPP,
	".cxx":  schema.LanguageCPP,
	".h":    schema.LanguageCPP,
	".hpp":  schema.LanguageCPP,
}

// GitPairsLoader mines (parent, fixed) file versions from the security-fix
// commits of a local git repository. Every changed source file of a fix
// commit yields one pair with full provenance.
type GitPairsLoader struct {
	repoPath string
	logger   hclog.Logger
}

// NewGitPairsLoader creates a loader over the repository at repoPath.
func NewGitPairsLoader(repoPath string, logger hclog.Logger) *GitPairsLoader {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &GitPairsLoader{repoPath: repoPath, logger: logger}
}

// Load walks the commit history and materializes the filtered pair set.
// Commit iteration order is the repository's log order, so repeated calls
// with the same config produce the same sequence.
func (l *GitPairsLoader) Load(cfg schema.DatasetConfig) ([]schema.VulnerabilityPair, error) {
	repo, err := git.PlainOpen(l.repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %q: %w", l.repoPath, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD of %q: %w", l.repoPath, err)
	}

	commitIter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history of %q: %w", l.repoPath, err)
	}
	defer commitIter.Close()

	repoName := filepath.Base(l.repoPath)
	var pairs []schema.VulnerabilityPair

	err = commitIter.ForEach(func(commit *object.Commit) error {
		subject := firstLine(commit.Message)
		if !fixCommitPattern.MatchString(subject) || commit.NumParents() != 1 {
			return nil
		}

		parent, err := commit.Parent(0)
		if err != nil {
			return nil
		}

		commitPairs, err := l.minePairs(commit, parent, repoName)
		if err != nil {
			l.logger.Warn("skipping unreadable fix commit", "commit", commit.Hash.String(), "error", err)
			return nil
		}
		pairs = append(pairs, commitPairs...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history walk failed for %q: %w", l.repoPath, err)
	}

	filtered := filterPairs(pairs, cfg)
	l.logger.Debug("repository mined", "repo", repoName, "pairs", len(pairs), "selected", len(filtered))
	return filtered, nil
}

// minePairs extracts one pair per changed source file between parent and commit.
func (l *GitPairsLoader) minePairs(commit, parent *object.Commit, repoName string) ([]schema.VulnerabilityPair, error) {
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, err
	}
	commitTree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTree(parentTree, commitTree)
	if err != nil {
		return nil, err
	}

	cweID := strings.ToUpper(cwePattern.FindString(commit.Message))
	if cweID == "" {
		cweID = "CWE-UNKNOWN"
	}

	var pairs []schema.VulnerabilityPair
	for _, change := range changes {
		// Only modifications have both a before and an after version.
		if change.From.Name == "" || change.To.Name == "" {
			continue
		}
		language, ok := extensionLanguages[strings.ToLower(filepath.Ext(change.To.Name))]
		if !ok {
			continue
		}

		vulnerable, err := readBlob(parentTree, change.From.Name)
		if err != nil {
			continue
		}
		fixed, err := readBlob(commitTree, change.To.Name)
		if err != nil {
			continue
		}

		pair, err := schema.NewVulnerabilityPair(vulnerable, fixed, l.ApplyDiffMasking(vulnerable, fixed), cweID, language)
		if err != nil {
			l.logger.Warn("skipping invalid mined pair", "commit", commit.Hash.String(), "file", change.To.Name, "error", err)
			continue
		}
		pair.CommitID = commit.Hash.String()
		pair.RepoName = repoName
		pair.FilePath = change.To.Name
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// Iterator returns a restartable batch iterator over the mined pairs.
func (l *GitPairsLoader) Iterator(cfg schema.DatasetConfig, batchSize int) (*Iterator, error) {
	pairs, err := l.Load(cfg)
	if err != nil {
		return nil, err
	}
	return NewIterator(pairs, batchSize)
}

// ApplyDiffMasking computes the token-level diff mask for a code pair.
func (l *GitPairsLoader) ApplyDiffMasking(vulnerable, fixed string) []int {
	return DiffMask(vulnerable, fixed)
}

// readBlob returns the file contents at path inside the tree.
func readBlob(tree *object.Tree, path string) (string, error) {
	file, err := tree.File(path)
	if err != nil {
		return "", err
	}
	reader, err := file.Reader()
	if err != nil {
		return "", err
	}
	defer reader.Close()

	contents, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(contents), nil
}

// firstLine returns the subject line of a commit message.
func firstLine(message string) string {
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		return message[:idx]
	}
	return message
}
