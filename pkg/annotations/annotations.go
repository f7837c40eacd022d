// Package annotations stores notes, quality flags and deprecation notices
// that users attach to catalog tables. Each author owns one JSON file under
// the annotations directory; reads merge every author's file.
package annotations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

const (
	// MaxContentLength is the longest annotation content accepted, in characters.
	MaxContentLength = 10_000

	maxAuthorLength = 64
	anonymousAuthor = "anonymous"
	gitTimeout      = 5 * time.Second
)

var validTypes = []string{models.AnnotationNote, models.AnnotationQualityFlag, models.AnnotationDeprecation}

// Store reads and writes annotation files in one directory.
type Store struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewStore creates a Store over dir. The directory is created on first write.
func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:    dir,
		logger: logger.Named("annotations"),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Validate checks an annotation request. Failures wrap apperrors.ErrValidation.
func Validate(target, annotationType, content string) error {
	if _, ok := models.ParseTableKey(target); !ok || strings.Count(target, ".") != 2 {
		return fmt.Errorf("%w: invalid target %q, expected database.schema.table", apperrors.ErrValidation, target)
	}
	if !slices.Contains(validTypes, annotationType) {
		return fmt.Errorf("%w: invalid annotation type %q, valid types: %s",
			apperrors.ErrValidation, annotationType, strings.Join(validTypes, ", "))
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", apperrors.ErrValidation)
	}
	if annotationType == models.AnnotationQualityFlag && !slices.Contains(models.QualityFlags, content) {
		return fmt.Errorf("%w: invalid quality flag %q, valid values: %s",
			apperrors.ErrValidation, content, strings.Join(models.QualityFlags, ", "))
	}
	if n := utf8.RuneCountInString(content); n > MaxContentLength {
		return fmt.Errorf("%w: content is %d characters, the limit is %d", apperrors.ErrValidation, n, MaxContentLength)
	}
	return nil
}

// Add appends an annotation to the author's file and returns it with the
// path of the file it was written to.
func (s *Store) Add(author, target, annotationType, content string) (models.Annotation, string, error) {
	if err := Validate(target, annotationType, content); err != nil {
		return models.Annotation{}, "", err
	}
	author = SanitizeAuthor(author)
	path := s.authorPath(author)

	file := s.readFile(path)
	a := models.Annotation{
		ID:        s.newID(),
		Type:      annotationType,
		Content:   content,
		Author:    author,
		CreatedAt: s.now().UTC().Format("2006-01-02T15:04:05.000000Z"),
	}
	table := file.Tables[target]
	table.Annotations = append(table.Annotations, a)
	file.Tables[target] = table

	if err := jsonutil.WriteFile(path, file); err != nil {
		return models.Annotation{}, "", fmt.Errorf("write annotations of %s: %w", author, err)
	}
	s.logger.Info("Added annotation",
		zap.String("target", target),
		zap.String("type", annotationType),
		zap.String("author", author))
	return a, path, nil
}

// All merges the annotations of every author. An annotation id seen in an
// earlier file (by file name order) is not repeated.
func (s *Store) All() (map[string][]models.Annotation, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string][]models.Annotation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	merged := map[string][]models.Annotation{}
	seen := map[string]bool{}
	for _, name := range names {
		file := s.readFile(filepath.Join(s.dir, name))
		for _, target := range sortedTargets(file.Tables) {
			if _, ok := merged[target]; !ok {
				merged[target] = []models.Annotation{}
			}
			for _, a := range file.Tables[target].Annotations {
				if seen[a.ID] {
					continue
				}
				seen[a.ID] = true
				merged[target] = append(merged[target], a)
			}
		}
	}
	return merged, nil
}

// ForTarget returns the merged annotations of one table, oldest first.
func (s *Store) ForTarget(target string) ([]models.Annotation, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	list := all[target]
	if list == nil {
		list = []models.Annotation{}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt < list[j].CreatedAt })
	return list, nil
}

// readFile loads one author file. Missing and corrupt files read as empty.
func (s *Store) readFile(path string) models.AnnotationFile {
	var file models.AnnotationFile
	if err := jsonutil.ReadFile(path, &file); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Ignoring unreadable annotations file",
				zap.String("path", path),
				zap.Error(err))
		}
		return models.AnnotationFile{Tables: map[string]models.TableAnnotations{}}
	}
	if file.Tables == nil {
		file.Tables = map[string]models.TableAnnotations{}
	}
	return file
}

func (s *Store) authorPath(author string) string {
	return filepath.Join(s.dir, author+".json")
}

func sortedTargets(tables map[string]models.TableAnnotations) []string {
	keys := make([]string, 0, len(tables))
	for k := range tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResolveAuthor picks the annotation author: the configured username, then
// git's user.name, then $USER. The result is sanitized.
func ResolveAuthor(ctx context.Context, configured string) string {
	if configured != "" {
		return SanitizeAuthor(configured)
	}
	if name := gitUserName(ctx); name != "" {
		return SanitizeAuthor(name)
	}
	return SanitizeAuthor(os.Getenv("USER"))
}

func gitUserName(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "git", "config", "user.name").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// SanitizeAuthor makes a name safe to use as a file name: characters other
// than letters, digits, '-' and '_' become '_', and the result is cut to 64
// characters. An empty name becomes "anonymous".
func SanitizeAuthor(name string) string {
	var sb strings.Builder
	n := 0
	for _, r := range name {
		if n == maxAuthorLength {
			break
		}
		if r < utf8.RuneSelf && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
		n++
	}
	if sb.Len() == 0 {
		return anonymousAuthor
	}
	return sb.String()
}
