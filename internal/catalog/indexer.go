package catalog

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eliseohh/jikanwaribot/internal/store"
	"github.com/eliseohh/jikanwaribot/internal/timetable"
)

const (
	// CourseCollection holds one document per course, keyed by name.
	CourseCollection = "timetable_name"
	// FileCollection records the hash of every synced source file.
	FileCollection = "catalog_files"

	numWorkers = 4
)

type Indexer struct {
	db  *store.DB
	log *zap.Logger
}

func NewIndexer(db *store.DB, log *zap.Logger) *Indexer {
	return &Indexer{db: db, log: log}
}

// Report summarises one Sync run.
type Report struct {
	Added     int
	Changed   int
	Unchanged int
	Removed   int
	Failed    int
}

func (r Report) String() string {
	return fmt.Sprintf("added=%d changed=%d unchanged=%d removed=%d failed=%d",
		r.Added, r.Changed, r.Unchanged, r.Removed, r.Failed)
}

type scanJob struct {
	FullPath string
	RelPath  string
}

type scanResult struct {
	RelPath string
	Hash    string
	File    *File // nil when unchanged or on error
	Err     error
	IsNew   bool
}

// Sync hashes every *.toml file under rootDir with a worker pool, stores
// the courses of new or changed files, and prunes courses whose file is gone.
func (idx *Indexer) Sync(ctx context.Context, rootDir string) (Report, error) {
	var report Report

	known, err := idx.fileHashes(ctx)
	if err != nil {
		return report, err
	}

	jobs := make(chan scanJob, 100)
	results := make(chan scanResult, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx.worker(known, jobs, results)
		}()
	}

	walkErr := make(chan error, 1)
	go func() {
		defer close(jobs)
		walkErr <- filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && path != rootDir {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(strings.ToLower(d.Name()), ".toml") {
				return nil
			}
			relPath, err := filepath.Rel(rootDir, path)
			if err != nil {
				return nil
			}
			jobs <- scanJob{FullPath: path, RelPath: filepath.ToSlash(relPath)}
			return nil
		})
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var collected []scanResult
	for res := range results {
		collected = append(collected, res)
	}
	if err := <-walkErr; err != nil {
		return report, fmt.Errorf("walk %s: %w", rootDir, err)
	}

	// Apply in path order so duplicate-name conflicts resolve the same way
	// on every run.
	sort.Slice(collected, func(i, j int) bool { return collected[i].RelPath < collected[j].RelPath })

	sources, err := idx.courseSources(ctx)
	if err != nil {
		return report, err
	}
	present := make(map[string]bool, len(collected))
	for _, res := range collected {
		present[res.RelPath] = true
	}
	conflicts := planOwners(collected, sources, present)

	for _, res := range collected {
		if res.Err != nil {
			report.Failed++
			idx.log.Warn("catalog file rejected", zap.String("path", res.RelPath), zap.Error(res.Err))
			continue
		}
		if res.File == nil {
			report.Unchanged++
			continue
		}
		if err := conflicts[res.RelPath]; err != nil {
			report.Failed++
			idx.log.Warn("catalog file not stored", zap.String("path", res.RelPath), zap.Error(err))
			continue
		}

		if err := idx.store(ctx, res, sources); err != nil {
			report.Failed++
			idx.log.Warn("catalog file not stored", zap.String("path", res.RelPath), zap.Error(err))
			continue
		}
		if res.IsNew {
			report.Added++
			idx.log.Info("catalog file added", zap.String("path", res.RelPath), zap.Int("courses", len(res.File.Courses)))
		} else {
			report.Changed++
			idx.log.Info("catalog file changed", zap.String("path", res.RelPath), zap.Int("courses", len(res.File.Courses)))
		}
	}

	removed, err := idx.prune(ctx, known, present, sources)
	report.Removed = removed
	return report, err
}

func (idx *Indexer) worker(known map[string]string, jobs <-chan scanJob, results chan<- scanResult) {
	for job := range jobs {
		res := scanResult{RelPath: job.RelPath}

		h, err := calculateHash(job.FullPath)
		if err != nil {
			res.Err = err
			results <- res
			continue
		}
		res.Hash = h

		prev, seen := known[job.RelPath]
		if seen && prev == h {
			results <- res
			continue
		}
		res.IsNew = !seen

		f, err := ParseFile(job.FullPath)
		if err != nil {
			res.Err = err
			results <- res
			continue
		}
		f.Path = job.RelPath
		res.File = f
		results <- res
	}
}

// planOwners decides which file owns each course name once this sync is
// applied and returns the changed files that would define a name another
// file keeps. Unchanged and unparsable files keep their stored courses;
// changed files release theirs, so a course may move between files in one
// edit. Claims are made in path order.
func planOwners(collected []scanResult, sources map[string]string, present map[string]bool) map[string]error {
	changed := make(map[string]bool)
	for _, res := range collected {
		if res.Err == nil && res.File != nil {
			changed[res.RelPath] = true
		}
	}

	owners := make(map[string]string, len(sources))
	for name, owner := range sources {
		if present[owner] && !changed[owner] {
			owners[name] = owner
		}
	}

	conflicts := make(map[string]error)
	for _, res := range collected {
		if !changed[res.RelPath] {
			continue
		}
		var err error
		for _, e := range res.File.Courses {
			if owner, ok := owners[e.Name]; ok && owner != res.RelPath {
				err = fmt.Errorf("course %q already defined in %s", e.Name, owner)
				break
			}
		}
		if err != nil {
			conflicts[res.RelPath] = err
			// A rejected file keeps whatever it stored before.
			for name, owner := range sources {
				if _, taken := owners[name]; owner == res.RelPath && !taken {
					owners[name] = owner
				}
			}
			continue
		}
		for _, e := range res.File.Courses {
			owners[e.Name] = res.RelPath
		}
	}
	return conflicts
}

// store replaces the courses previously loaded from res.RelPath. Names
// already taken over by another file in this sync are left alone.
func (idx *Indexer) store(ctx context.Context, res scanResult, sources map[string]string) error {
	err := idx.db.Batch(ctx, func(tx *store.Tx) error {
		for name, owner := range sources {
			if owner == res.RelPath {
				if err := tx.DeleteDoc(ctx, CourseCollection, name); err != nil {
					return err
				}
			}
		}
		for _, e := range res.File.Courses {
			if err := tx.DeleteDoc(ctx, CourseCollection, e.Name); err != nil {
				return err
			}
			if err := tx.Merge(ctx, CourseCollection, e.Name, courseFields(e, res.RelPath)); err != nil {
				return err
			}
		}
		return tx.Merge(ctx, FileCollection, res.RelPath, map[string]any{"hash": res.Hash})
	})
	if err != nil {
		return err
	}

	for name, owner := range sources {
		if owner == res.RelPath {
			delete(sources, name)
		}
	}
	for _, e := range res.File.Courses {
		sources[e.Name] = res.RelPath
	}
	return nil
}

func (idx *Indexer) prune(ctx context.Context, known map[string]string, present map[string]bool, sources map[string]string) (int, error) {
	var stale []string
	for path := range known {
		if !present[path] {
			stale = append(stale, path)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	sort.Strings(stale)
	idx.log.Info("pruning stale catalog files", zap.Strings("paths", stale))

	gone := make(map[string]bool, len(stale))
	for _, p := range stale {
		gone[p] = true
	}
	err := idx.db.Batch(ctx, func(tx *store.Tx) error {
		for name, owner := range sources {
			if gone[owner] {
				if err := tx.DeleteDoc(ctx, CourseCollection, name); err != nil {
					return err
				}
			}
		}
		for _, p := range stale {
			if err := tx.DeleteDoc(ctx, FileCollection, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}

func (idx *Indexer) fileHashes(ctx context.Context) (map[string]string, error) {
	paths, err := idx.db.Docs(ctx, FileCollection)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		doc, err := idx.db.Get(ctx, FileCollection, p)
		if err != nil {
			return nil, err
		}
		h, _ := doc.String("hash")
		out[p] = h
	}
	return out, nil
}

// courseSources maps course name to the file it was loaded from.
func (idx *Indexer) courseSources(ctx context.Context) (map[string]string, error) {
	names, err := idx.db.Docs(ctx, CourseCollection)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(names))
	for _, name := range names {
		doc, err := idx.db.Get(ctx, CourseCollection, name)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		src, _ := doc.String("source")
		out[name] = src
	}
	return out, nil
}

func calculateHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func courseFields(e timetable.Entry, source string) map[string]any {
	offered := make([]string, 0, len(e.Offered))
	for _, s := range e.Offered {
		offered = append(offered, s.Key())
	}
	return map[string]any{
		"credit":  e.Credit,
		"week1":   e.Day1,
		"week2":   e.Day2,
		"hour":    e.Period,
		"offered": offered,
		"source":  source,
	}
}
