// Package todo keeps the to-do groups shown next to the editor.
package todo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidData is returned for files missing task_groups or archived_tasks.
var ErrInvalidData = errors.New("invalid to-do data")

// UncategorizedGroup receives restored tasks when no group exists.
const UncategorizedGroup = "未分類"

// DefaultColor is used for unknown colour names.
const DefaultColor = "預設"

// Colors maps colour names to their background hex codes.
var Colors = map[string]string{
	"紅色":         "#FFCDD2",
	"黃色":         "#FFF9C4",
	"藍色":         "#BBDEFB",
	"綠色":         "#C8E6C9",
	"橘色":         "#FFECB3",
	DefaultColor: "#F5F5F5",
}

// ColorNames lists colour names in display order.
var ColorNames = []string{"紅色", "黃色", "藍色", "綠色", "橘色", DefaultColor}

// ColorCode returns the hex code for name, falling back to the default.
func ColorCode(name string) string {
	if c, ok := Colors[name]; ok {
		return c
	}
	return Colors[DefaultColor]
}

type SubTask struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DueDate   string `json:"due_date"` // YYYY-MM-DD or empty
	DueTime   string `json:"due_time"` // HH:MM or empty
	ColorName string `json:"color_name"`
	Details   string `json:"details"`
	Archived  bool   `json:"archived"`
}

type Group struct {
	MainTaskName string    `json:"main_task_name"`
	SubTasks     []SubTask `json:"sub_tasks"`
}

// Data is the persisted to-do state.
type Data struct {
	TaskGroups    []Group   `json:"task_groups"`
	ArchivedTasks []SubTask `json:"archived_tasks"`
}

// NewID returns a random 32 character hex id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Load reads and validates the file at path.
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read to-do file: %w", err)
	}
	return Decode(raw)
}

// Open is Load, except that a missing file yields empty data.
func Open(path string) (*Data, error) {
	d, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Data{TaskGroups: []Group{}, ArchivedTasks: []SubTask{}}, nil
	}
	return d, err
}

// Decode parses to-do JSON. Both top-level keys must be present.
func Decode(raw []byte) (*Data, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	for _, k := range []string{"task_groups", "archived_tasks"} {
		if _, ok := keys[k]; !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidData, k)
		}
	}

	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	for gi, g := range d.TaskGroups {
		for si, s := range g.SubTasks {
			if s.ID == "" {
				d.TaskGroups[gi].SubTasks[si].ID = NewID()
			}
		}
	}
	return &d, nil
}

// Save writes d to path. Archived sub-tasks still inside groups are dropped.
func (d *Data) Save(path string) error {
	out := Data{
		TaskGroups:    make([]Group, 0, len(d.TaskGroups)),
		ArchivedTasks: append([]SubTask{}, d.ArchivedTasks...),
	}
	for _, g := range d.TaskGroups {
		ng := Group{MainTaskName: g.MainTaskName, SubTasks: []SubTask{}}
		for _, s := range g.SubTasks {
			if !s.Archived {
				ng.SubTasks = append(ng.SubTasks, s)
			}
		}
		out.TaskGroups = append(out.TaskGroups, ng)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to marshal to-do data: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write to-do file: %w", err)
	}
	return nil
}

// AddGroup appends a group and returns its index.
func (d *Data) AddGroup(name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1, errors.New("group name is empty")
	}
	d.TaskGroups = append(d.TaskGroups, Group{MainTaskName: name, SubTasks: []SubTask{}})
	return len(d.TaskGroups) - 1, nil
}

// SubTaskInput is the editable part of a sub-task.
type SubTaskInput struct {
	Name      string
	DueDate   string
	DueTime   string
	ColorName string
	Details   string
}

func (in SubTaskInput) validate() (SubTaskInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.DueDate = strings.TrimSpace(in.DueDate)
	in.DueTime = strings.TrimSpace(in.DueTime)
	if in.Name == "" {
		return in, errors.New("sub-task name is empty")
	}
	if in.DueDate != "" {
		if _, err := time.Parse("2006-01-02", in.DueDate); err != nil {
			return in, fmt.Errorf("due date must be YYYY-MM-DD: %q", in.DueDate)
		}
	}
	if in.DueTime != "" {
		if in.DueDate == "" {
			return in, errors.New("due time requires a due date")
		}
		t, err := time.Parse("15:04", in.DueTime)
		if err != nil {
			return in, fmt.Errorf("due time must be HH:MM between 00:00 and 23:59: %q", in.DueTime)
		}
		in.DueTime = t.Format("15:04")
	}
	if _, ok := Colors[in.ColorName]; !ok {
		in.ColorName = DefaultColor
	}
	return in, nil
}

func (d *Data) group(index int) (*Group, error) {
	if index < 0 || index >= len(d.TaskGroups) {
		return nil, fmt.Errorf("group %d does not exist", index)
	}
	return &d.TaskGroups[index], nil
}

// AddSubTask adds a new sub-task to the group and returns its id.
func (d *Data) AddSubTask(groupIndex int, in SubTaskInput) (string, error) {
	g, err := d.group(groupIndex)
	if err != nil {
		return "", err
	}
	in, err = in.validate()
	if err != nil {
		return "", err
	}
	s := SubTask{
		ID:        NewID(),
		Name:      in.Name,
		DueDate:   in.DueDate,
		DueTime:   in.DueTime,
		ColorName: in.ColorName,
		Details:   in.Details,
	}
	g.SubTasks = append(g.SubTasks, s)
	return s.ID, nil
}

// UpdateSubTask replaces the editable fields of sub-task id.
func (d *Data) UpdateSubTask(groupIndex int, id string, in SubTaskInput) error {
	g, err := d.group(groupIndex)
	if err != nil {
		return err
	}
	in, err = in.validate()
	if err != nil {
		return err
	}
	for i := range g.SubTasks {
		if g.SubTasks[i].ID == id {
			s := &g.SubTasks[i]
			s.Name, s.DueDate, s.DueTime, s.ColorName, s.Details = in.Name, in.DueDate, in.DueTime, in.ColorName, in.Details
			s.Archived = false
			return nil
		}
	}
	return fmt.Errorf("sub-task %s not found", id)
}

// Archive moves sub-task id from the group to the archive.
func (d *Data) Archive(groupIndex int, id string) error {
	g, err := d.group(groupIndex)
	if err != nil {
		return err
	}
	for i, s := range g.SubTasks {
		if s.ID == id {
			g.SubTasks = append(g.SubTasks[:i], g.SubTasks[i+1:]...)
			s.Archived = true
			d.ArchivedTasks = append(d.ArchivedTasks, s)
			return nil
		}
	}
	return fmt.Errorf("sub-task %s not found", id)
}

// Restore moves archived task index back into the first group, creating an
// uncategorized group if there is none.
func (d *Data) Restore(index int) error {
	if index < 0 || index >= len(d.ArchivedTasks) {
		return fmt.Errorf("archived task %d does not exist", index)
	}
	s := d.ArchivedTasks[index]
	d.ArchivedTasks = append(d.ArchivedTasks[:index], d.ArchivedTasks[index+1:]...)
	s.Archived = false

	if len(d.TaskGroups) == 0 {
		d.TaskGroups = append(d.TaskGroups, Group{MainTaskName: UncategorizedGroup})
	}
	d.TaskGroups[0].SubTasks = append(d.TaskGroups[0].SubTasks, s)
	return nil
}

// DeleteArchived permanently removes archived task index.
func (d *Data) DeleteArchived(index int) error {
	if index < 0 || index >= len(d.ArchivedTasks) {
		return fmt.Errorf("archived task %d does not exist", index)
	}
	d.ArchivedTasks = append(d.ArchivedTasks[:index], d.ArchivedTasks[index+1:]...)
	return nil
}
