package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Résumé file types accepted at upload.
const (
	ResumeTypePDF  = "pdf"
	ResumeTypeDOCX = "docx"
	ResumeTypeTXT  = "txt"
)

func ResumeTypeAllowed(ext string) bool {
	switch ext {
	case ResumeTypePDF, ResumeTypeDOCX, ResumeTypeTXT:
		return true
	}
	return false
}

// ParsedResume is the structured view of a résumé. Free-form sections stay
// untyped because models return them as strings, lists, or objects.
type ParsedResume struct {
	Name           *string    `json:"name"`
	Email          *string    `json:"email"`
	Phone          *string    `json:"phone"`
	Education      any        `json:"education"`
	Experience     any        `json:"experience"`
	Skills         StringList `json:"skills"`
	Projects       any        `json:"projects"`
	Certifications StringList `json:"certifications"`
	Summary        *string    `json:"summary"`
	RawText        string     `json:"raw_text,omitempty"`
}

// StringList decodes a JSON list of strings, also accepting a single
// delimited string ("Go, Redis") or a list of objects.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*l = nil
		return nil
	}
	*l = listItems(raw)
	return nil
}

func isListSeparator(r rune) bool {
	switch r {
	case ',', '，', '、', ';', '；', '\n':
		return true
	}
	return false
}

func listItems(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case nil:
	case string:
		for _, f := range strings.FieldsFunc(t, isListSeparator) {
			if f = strings.TrimSpace(f); f != "" {
				out = append(out, f)
			}
		}
	case []any:
		for _, e := range t {
			out = append(out, listItems(e)...)
		}
	case map[string]any:
		if name, ok := t["name"].(string); ok && strings.TrimSpace(name) != "" {
			return append(out, strings.TrimSpace(name))
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %v", k, t[k]))
		}
		if len(parts) > 0 {
			out = append(out, strings.Join(parts, "; "))
		}
	default:
		out = append(out, fmt.Sprint(t))
	}
	return out
}

// EmptyParsedResume is the all-null record kept when structuring fails.
func EmptyParsedResume(rawText string) ParsedResume {
	return ParsedResume{
		Skills:         StringList{},
		Projects:       []any{},
		Certifications: StringList{},
		RawText:        rawText,
	}
}

type Resume struct {
	ID         uint                             `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID     uint                             `gorm:"column:user_id;not null;index" json:"user_id"`
	FilePath   string                           `gorm:"column:file_path;type:text;not null" json:"file_path"`
	FileName   string                           `gorm:"column:file_name;type:varchar(255)" json:"file_name"`
	FileType   string                           `gorm:"column:file_type;type:varchar(10)" json:"file_type"`
	ParsedData datatypes.JSONType[ParsedResume] `gorm:"column:parsed_data;type:jsonb" json:"parsed_data"`
	RawText    string                           `gorm:"column:raw_text;type:text" json:"-"`
	IsActive   int                              `gorm:"column:is_active;not null;default:1;index" json:"is_active"`
	Version    int                              `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt  time.Time                        `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt  time.Time                        `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Resume) TableName() string { return "resumes" }
