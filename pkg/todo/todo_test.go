package todo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValidation(t *testing.T) {
	_, err := Decode([]byte(`{"task_groups": []}`))
	assert.ErrorIs(t, err, ErrInvalidData)

	_, err = Decode([]byte(`[]`))
	assert.ErrorIs(t, err, ErrInvalidData)

	d, err := Decode([]byte(`{"task_groups": [{"main_task_name": "報告", "sub_tasks": [{"name": "初稿"}]}], "archived_tasks": []}`))
	require.NoError(t, err)
	require.Len(t, d.TaskGroups, 1)
	assert.Len(t, d.TaskGroups[0].SubTasks[0].ID, 32, "missing ids are filled in")
}

func TestSubTaskLifecycle(t *testing.T) {
	d := &Data{}
	gi, err := d.AddGroup(" 年度報告 ")
	require.NoError(t, err)
	assert.Equal(t, "年度報告", d.TaskGroups[gi].MainTaskName)

	id, err := d.AddSubTask(gi, SubTaskInput{Name: "校對", DueDate: "2024-05-01", DueTime: "9:05", ColorName: "藍色"})
	require.NoError(t, err)
	s := d.TaskGroups[gi].SubTasks[0]
	assert.Equal(t, id, s.ID)
	assert.Equal(t, "09:05", s.DueTime)
	assert.Equal(t, "#BBDEFB", ColorCode(s.ColorName))

	require.NoError(t, d.UpdateSubTask(gi, id, SubTaskInput{Name: "校對二稿", ColorName: "紫色"}))
	assert.Equal(t, "校對二稿", d.TaskGroups[gi].SubTasks[0].Name)
	assert.Equal(t, DefaultColor, d.TaskGroups[gi].SubTasks[0].ColorName)

	require.NoError(t, d.Archive(gi, id))
	assert.Empty(t, d.TaskGroups[gi].SubTasks)
	require.Len(t, d.ArchivedTasks, 1)
	assert.True(t, d.ArchivedTasks[0].Archived)

	require.NoError(t, d.Restore(0))
	assert.Empty(t, d.ArchivedTasks)
	assert.False(t, d.TaskGroups[0].SubTasks[0].Archived)

	assert.Error(t, d.Archive(gi, "missing"))
	assert.Error(t, d.Restore(0))
}

func TestSubTaskValidation(t *testing.T) {
	d := &Data{}
	gi, _ := d.AddGroup("g")
	tests := []SubTaskInput{
		{Name: " "},
		{Name: "x", DueDate: "2024/05/01"},
		{Name: "x", DueTime: "10:00"},
		{Name: "x", DueDate: "2024-05-01", DueTime: "24:00"},
	}
	for _, in := range tests {
		_, err := d.AddSubTask(gi, in)
		assert.Error(t, err, "%+v", in)
	}
	_, err := d.AddSubTask(5, SubTaskInput{Name: "x"})
	assert.Error(t, err)
	_, err = d.AddGroup("")
	assert.Error(t, err)
}

func TestRestoreCreatesUncategorized(t *testing.T) {
	d := &Data{ArchivedTasks: []SubTask{{ID: "a", Name: "舊任務", Archived: true}}}
	require.NoError(t, d.Restore(0))
	require.Len(t, d.TaskGroups, 1)
	assert.Equal(t, UncategorizedGroup, d.TaskGroups[0].MainTaskName)
	assert.Equal(t, "舊任務", d.TaskGroups[0].SubTasks[0].Name)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo.json")
	d := &Data{
		TaskGroups: []Group{{MainTaskName: "A&B", SubTasks: []SubTask{
			{ID: "1", Name: "keep"},
			{ID: "2", Name: "stale", Archived: true},
		}}},
		ArchivedTasks: []SubTask{{ID: "3", Name: "done", Archived: true}},
	}
	require.NoError(t, d.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"main_task_name": "A&B"`)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.TaskGroups[0].SubTasks, 1)
	assert.Equal(t, "keep", loaded.TaskGroups[0].SubTasks[0].Name)
	assert.Equal(t, "done", loaded.ArchivedTasks[0].Name)

	require.NoError(t, loaded.DeleteArchived(0))
	assert.Empty(t, loaded.ArchivedTasks)
}

func TestOpenMissingFile(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(filepath.Join(dir, "todo_data.json"))
	require.NoError(t, err)
	assert.Empty(t, d.TaskGroups)
	assert.Empty(t, d.ArchivedTasks)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"task_groups": []}`), 0644))
	_, err = Open(bad)
	assert.ErrorIs(t, err, ErrInvalidData)
}
