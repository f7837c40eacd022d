package models

// Annotation types.
const (
	AnnotationNote        = "note"
	AnnotationQualityFlag = "quality_flag"
	AnnotationDeprecation = "deprecation"
)

// Quality flag values accepted as the content of a quality_flag annotation.
var QualityFlags = []string{"TRUSTED", "STALE", "INCOMPLETE", "EXPERIMENTAL"}

// Annotation is a note attached to a catalog table by a user.
type Annotation struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
	Target    string `json:"target,omitempty"` // set on merged reads only
}

// TableAnnotations groups the annotations of one table.
type TableAnnotations struct {
	Annotations []Annotation `json:"annotations"`
}

// AnnotationFile is one author's annotations file.
type AnnotationFile struct {
	Tables map[string]TableAnnotations `json:"tables"`
}
