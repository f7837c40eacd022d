package ontology

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

// Load reads an ontology document. A missing file wraps apperrors.ErrNotFound.
func Load(path string) (*models.OntologyDocument, error) {
	var doc models.OntologyDocument
	if err := jsonutil.ReadFile(path, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("ontology %s: %w", path, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("load ontology: %w", err)
	}
	return &doc, nil
}

// Save atomically writes doc to path.
func Save(path string, doc *models.OntologyDocument) error {
	if err := jsonutil.WriteFile(path, doc); err != nil {
		return fmt.Errorf("save ontology: %w", err)
	}
	return nil
}
