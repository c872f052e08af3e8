package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textcorrector/pkg/todo"
)

func TestRunTodoLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo_data.json")
	var out bytes.Buffer

	require.NoError(t, runTodo(path, nil, &out))
	assert.Contains(t, out.String(), "沒有待辦事項")

	require.NoError(t, runTodo(path, []string{"group", "校稿"}, &out))
	require.NoError(t, runTodo(path, []string{"add", "-color", "紅色", "-due", "2024-05-01", "-time", "9:05", "1", "第一章"}, &out))

	data, err := todo.Load(path)
	require.NoError(t, err)
	require.Len(t, data.TaskGroups, 1)
	require.Len(t, data.TaskGroups[0].SubTasks, 1)
	sub := data.TaskGroups[0].SubTasks[0]
	assert.Equal(t, "第一章", sub.Name)
	assert.Equal(t, "紅色", sub.ColorName)
	assert.Equal(t, "09:05", sub.DueTime)

	out.Reset()
	require.NoError(t, runTodo(path, []string{"list"}, &out))
	assert.Contains(t, out.String(), "1. 校稿")
	assert.Contains(t, out.String(), "[紅色]  "+sub.ID+"  第一章  2024-05-01 09:05")

	require.NoError(t, runTodo(path, []string{"archive", "1", sub.ID}, &out))
	data, err = todo.Load(path)
	require.NoError(t, err)
	assert.Empty(t, data.TaskGroups[0].SubTasks)
	require.Len(t, data.ArchivedTasks, 1)

	require.NoError(t, runTodo(path, []string{"restore", "1"}, &out))
	data, err = todo.Load(path)
	require.NoError(t, err)
	assert.Len(t, data.TaskGroups[0].SubTasks, 1)
	assert.Empty(t, data.ArchivedTasks)

	require.NoError(t, runTodo(path, []string{"archive", "1", sub.ID}, &out))
	require.NoError(t, runTodo(path, []string{"purge", "1"}, &out))
	data, err = todo.Load(path)
	require.NoError(t, err)
	assert.Empty(t, data.ArchivedTasks)
}

func TestRunTodoErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo_data.json")
	var out bytes.Buffer

	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"explode"}},
		{"group without name", []string{"group"}},
		{"add without name", []string{"add", "1"}},
		{"add to missing group", []string{"add", "3", "x"}},
		{"bad index", []string{"restore", "zero"}},
		{"restore missing", []string{"restore", "1"}},
		{"bad due date", []string{"add", "-due", "05/01", "1", "x"}},
	}
	require.NoError(t, runTodo(path, []string{"group", "校稿"}, &out))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, runTodo(path, tt.args, &out))
		})
	}
}
