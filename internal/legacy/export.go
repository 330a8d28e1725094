// Package legacy reads exports of the original document store and converts
// them to canonical records. It is the only place old field shapes
// (assignee, task_members, timestamp objects) are understood.
package legacy

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fkhayef/teamtasks/internal/task"
)

// Version is the only export schema this adapter reads
const Version = "v0"

// ErrUnsupportedVersion is returned for exports of an unknown schema version
var ErrUnsupportedVersion = errors.New("unsupported export version")

// Export is a full dump of users, groups and tasks. JSON exports decode
// through the same YAML reader.
type Export struct {
	Version string  `yaml:"version"`
	Users   []User  `yaml:"users"`
	Groups  []Group `yaml:"groups"`
	Tasks   []Task  `yaml:"tasks"`
}

// User is a user document
type User struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Email     string    `yaml:"email"`
	Role      string    `yaml:"role"`
	Status    string    `yaml:"status"`
	GroupID   string    `yaml:"groupId"`
	CreatedAt Timestamp `yaml:"createdAt"`
}

// Group is a group document
type Group struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Members   []string  `yaml:"members"`
	CreatedAt Timestamp `yaml:"createdAt"`
}

// Task is a task document in any of its historical shapes
type Task struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"desc"`
	Status      string    `yaml:"status"`
	Priority    string    `yaml:"priority"`
	Due         Timestamp `yaml:"due"`
	DueDate     Timestamp `yaml:"dueDate"`
	CreatedBy   string    `yaml:"createdBy"`
	AssignedBy  string    `yaml:"assignedBy"`
	TaskType    string    `yaml:"taskType"`
	GroupID     string    `yaml:"groupId"`
	Assignee    string    `yaml:"assignee"`
	Assignees   []string  `yaml:"assignees"`
	TaskMembers []string  `yaml:"task_members"`
	Comments    []Comment `yaml:"comments"`
	CreatedAt   Timestamp `yaml:"createdAt"`
	UpdatedAt   Timestamp `yaml:"updatedAt"`
	CompletedAt Timestamp `yaml:"completedAt"`
}

// Comment is a comment embedded in a task document
type Comment struct {
	ID         string    `yaml:"id"`
	Text       string    `yaml:"text"`
	AuthorID   string    `yaml:"authorId"`
	AuthorName string    `yaml:"authorName"`
	CreatedAt  Timestamp `yaml:"createdAt"`
}

// Decode reads an export. A missing version is read as v0.
func Decode(r io.Reader) (*Export, error) {
	var exp Export
	if err := yaml.NewDecoder(r).Decode(&exp); err != nil {
		if errors.Is(err, io.EOF) {
			return &Export{Version: Version}, nil
		}
		return nil, fmt.Errorf("failed to decode export: %w", err)
	}
	if exp.Version == "" {
		exp.Version = Version
	}
	if exp.Version != Version {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, exp.Version)
	}
	return &exp, nil
}

// Raw converts the document to a raw task for normalization
func (t Task) Raw() task.RawTask {
	raw := task.RawTask{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		DueAt:       t.dueAt(),
		CreatedBy:   t.CreatedBy,
		AssignedBy:  t.AssignedBy,
		TaskType:    strings.ToLower(strings.TrimSpace(t.TaskType)),
		Assignee:    t.Assignee,
		Assignees:   t.Assignees,
		TaskMembers: t.TaskMembers,
		CreatedAt:   t.CreatedAt.Time,
		UpdatedAt:   t.UpdatedAt.Time,
		CompletedAt: t.CompletedAt.Ptr(),
	}
	if t.GroupID != "" {
		gid := t.GroupID
		raw.GroupID = &gid
	}
	for _, c := range t.Comments {
		raw.Comments = append(raw.Comments, task.Comment{
			ID:         c.ID,
			Text:       c.Text,
			AuthorID:   c.AuthorID,
			AuthorName: c.AuthorName,
			CreatedAt:  c.CreatedAt.Time,
		})
	}
	return raw
}

// dueAt prefers due, the field the task forms wrote, over dueDate
func (t Task) dueAt() *time.Time {
	if !t.Due.IsZero() {
		return t.Due.Ptr()
	}
	return t.DueDate.Ptr()
}

// Timestamp accepts the time encodings found in exports: RFC 3339 strings,
// plain dates, unix seconds or milliseconds, and {seconds, nanoseconds} objects.
type Timestamp struct {
	time.Time
}

// Ptr returns nil for a missing timestamp
func (ts Timestamp) Ptr() *time.Time {
	if ts.IsZero() {
		return nil
	}
	t := ts.Time
	return &t
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// UnmarshalYAML implements yaml.Unmarshaler
func (ts *Timestamp) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return ts.parseScalar(value)
	case yaml.MappingNode:
		var obj struct {
			Seconds      *int64 `yaml:"seconds"`
			Nanoseconds  int64  `yaml:"nanoseconds"`
			USeconds     *int64 `yaml:"_seconds"`
			UNanoseconds int64  `yaml:"_nanoseconds"`
		}
		if err := value.Decode(&obj); err != nil {
			return err
		}
		switch {
		case obj.Seconds != nil:
			ts.Time = time.Unix(*obj.Seconds, obj.Nanoseconds).UTC()
		case obj.USeconds != nil:
			ts.Time = time.Unix(*obj.USeconds, obj.UNanoseconds).UTC()
		default:
			return fmt.Errorf("line %d: timestamp object without seconds", value.Line)
		}
		return nil
	default:
		return fmt.Errorf("line %d: unsupported timestamp", value.Line)
	}
}

func (ts *Timestamp) parseScalar(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if s == "" || value.Tag == "!!null" {
		ts.Time = time.Time{}
		return nil
	}

	if value.Tag == "!!int" || value.Tag == "!!float" {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		// Values this large are milliseconds.
		if n > 1e12 {
			ts.Time = time.UnixMilli(int64(n)).UTC()
		} else {
			ts.Time = time.Unix(int64(n), 0).UTC()
		}
		return nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ts.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("line %d: unrecognized timestamp %q", value.Line, s)
}
