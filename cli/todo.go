package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"textcorrector/pkg/todo"
)

const todoUsage = `使用方法: textcorrector-cli todo <命令>
  list                                   列出待辦事項
  group <名稱>                           新增主任務
  add [-color 顏色] [-due YYYY-MM-DD] [-time HH:MM] [-details 說明] <主任務編號> <名稱>
  archive <主任務編號> <ID>              封存子任務
  restore <封存編號>                     還原封存的子任務
  purge <封存編號>                       永久刪除封存的子任務`

// runTodo 执行 todo 子命令，编号对用户从 1 开始
func runTodo(path string, args []string, w io.Writer) error {
	data, err := todo.Open(path)
	if err != nil {
		return err
	}
	if len(args) == 0 || args[0] == "list" {
		printTodo(w, data)
		return nil
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "group":
		if len(rest) == 0 {
			return errors.New("缺少主任務名稱")
		}
		idx, err := data.AddGroup(strings.Join(rest, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "已新增主任務 %d\n", idx+1)

	case "add":
		fs := flag.NewFlagSet("add", flag.ContinueOnError)
		fs.SetOutput(w)
		color := fs.String("color", todo.DefaultColor, "顏色: "+strings.Join(todo.ColorNames, "、"))
		due := fs.String("due", "", "截止日期 YYYY-MM-DD")
		at := fs.String("time", "", "截止時間 HH:MM")
		details := fs.String("details", "", "說明")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() < 2 {
			return errors.New("用法: add <主任務編號> <名稱>")
		}
		g, err := parseIndex(fs.Arg(0))
		if err != nil {
			return err
		}
		id, err := data.AddSubTask(g, todo.SubTaskInput{
			Name:      strings.Join(fs.Args()[1:], " "),
			DueDate:   *due,
			DueTime:   *at,
			ColorName: *color,
			Details:   *details,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "已新增子任務 %s\n", id)

	case "archive":
		if len(rest) != 2 {
			return errors.New("用法: archive <主任務編號> <ID>")
		}
		g, err := parseIndex(rest[0])
		if err != nil {
			return err
		}
		if err := data.Archive(g, rest[1]); err != nil {
			return err
		}

	case "restore", "purge":
		if len(rest) != 1 {
			return fmt.Errorf("用法: %s <封存編號>", cmd)
		}
		i, err := parseIndex(rest[0])
		if err != nil {
			return err
		}
		if cmd == "restore" {
			err = data.Restore(i)
		} else {
			err = data.DeleteArchived(i)
		}
		if err != nil {
			return err
		}

	default:
		return fmt.Errorf("未知的命令 %q\n%s", cmd, todoUsage)
	}
	return data.Save(path)
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("編號必須是正整數: %q", s)
	}
	return n - 1, nil
}

func printTodo(w io.Writer, d *todo.Data) {
	if len(d.TaskGroups) == 0 && len(d.ArchivedTasks) == 0 {
		fmt.Fprintln(w, "沒有待辦事項")
		return
	}
	for gi, g := range d.TaskGroups {
		fmt.Fprintf(w, "%d. %s\n", gi+1, g.MainTaskName)
		for _, s := range g.SubTasks {
			fmt.Fprintf(w, "   %s\n", describeSubTask(s))
		}
	}
	if len(d.ArchivedTasks) > 0 {
		fmt.Fprintln(w, "已封存:")
		for i, s := range d.ArchivedTasks {
			fmt.Fprintf(w, "%d. %s\n", i+1, describeSubTask(s))
		}
	}
}

func describeSubTask(s todo.SubTask) string {
	parts := []string{"[" + s.ColorName + "]", s.ID, s.Name}
	if due := strings.TrimSpace(s.DueDate + " " + s.DueTime); due != "" {
		parts = append(parts, due)
	}
	return strings.Join(parts, "  ")
}
