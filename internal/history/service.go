// Package history keeps every distinct report as a commit in a local git repository.
package history

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	branch     = "main"
	reportFile = "report.json"
	digestKey  = "digest: "
)

type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	dir    string
	author string
	mu     sync.Mutex
}

func New(dir string) *Service {
	return &Service{dir: dir, author: "dietscore"}
}

// Record commits report on main unless it is byte-identical to the report at HEAD.
// The second result reports whether a commit was created.
func (s *Service) Record(report []byte, digest string) (CommitInfo, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.ensureRepo()
	if err != nil {
		return CommitInfo{}, false, err
	}

	head, err := headCommit(repo)
	if err != nil {
		return CommitInfo{}, false, err
	}
	if head != nil {
		previous, err := readReport(head)
		if err != nil {
			return CommitInfo{}, false, err
		}
		if bytes.Equal(previous, report) {
			return toCommitInfo(head), false, nil
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, false, fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(worktree.Filesystem.Root(), reportFile), report, 0o644); err != nil {
		return CommitInfo{}, false, fmt.Errorf("write %s: %w", reportFile, err)
	}
	if _, err := worktree.Add(reportFile); err != nil {
		return CommitInfo{}, false, fmt.Errorf("git add report: %w", err)
	}

	message := fmt.Sprintf("Update report\n\n%s%s\n", digestKey, digest)
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  s.author,
			Email: s.author + "@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return CommitInfo{}, false, fmt.Errorf("commit report: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, false, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), true, nil
}

// Latest returns the report at HEAD. ok is false for a repository with no commits.
func (s *Service) Latest() (report []byte, info CommitInfo, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, CommitInfo{}, false, nil
	}
	if err != nil {
		return nil, CommitInfo{}, false, fmt.Errorf("open repo: %w", err)
	}
	head, err := headCommit(repo)
	if err != nil || head == nil {
		return nil, CommitInfo{}, false, err
	}
	report, err = readReport(head)
	if err != nil {
		return nil, CommitInfo{}, false, err
	}
	return report, toCommitInfo(head), true, nil
}

// History lists commits on main, newest first. limit <= 0 means all.
func (s *Service) History(limit int) ([]CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]CommitInfo, 0)
	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	head, err := headCommit(repo)
	if err != nil || head == nil {
		return items, err
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) ensureRepo() (*git.Repository, error) {
	repo, err := git.PlainOpen(s.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(s.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", branch, err)
	}
	return repo, nil
}

func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", branch, err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit object: %w", err)
	}
	return commitObj, nil
}

func readReport(commitObj *object.Commit) ([]byte, error) {
	file, err := commitObj.File(reportFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", reportFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open report reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read report bytes: %w", err)
	}
	return data, nil
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	info := CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.SplitN(commitObj.Message, "\n", 2)[0],
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
	for _, line := range strings.Split(commitObj.Message, "\n") {
		if strings.HasPrefix(line, digestKey) {
			info.Digest = strings.TrimPrefix(line, digestKey)
		}
	}
	return info
}
