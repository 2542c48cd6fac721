package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/BuzzLyutic/taskmaster/internal/model"
	"github.com/BuzzLyutic/taskmaster/internal/tasksync"
)

var (
	errUsage     = errors.New("usage")
	errAmbiguous = errors.New("ambiguous task reference")
)

const shortID = 8

func marker(s model.Status) string {
	switch s {
	case model.StatusCompleted:
		return "[x]"
	case model.StatusInProgress:
		return "[~]"
	}
	return "[ ]"
}

// printTasks writes the tasks matching f, numbered by their position in the
// full list so numbers stay valid as references.
func printTasks(w io.Writer, tasks []model.Task, f model.TaskFilter) {
	n := 0
	for i, t := range tasks {
		if !f.Match(t) {
			continue
		}
		n++
		fmt.Fprintf(w, "%4d  %s  %s  %s", i+1, short(t.ID), marker(t.Status), normalizeTitle(t.Title))
		if t.DueDate != nil {
			fmt.Fprintf(w, "  (due %s)", t.DueDate.Format("2006-01-02"))
		}
		fmt.Fprintln(w)
	}
	if n == 0 {
		fmt.Fprintln(w, "no tasks")
	}
}

func short(id string) string {
	if len(id) > shortID {
		return id[:shortID]
	}
	return id
}

func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}

// resolveRef finds a task by list number or id prefix.
func resolveRef(tasks []model.Task, ref string) (model.Task, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(tasks) {
			return model.Task{}, fmt.Errorf("%w: number out of range: %d", tasksync.ErrNotFound, n)
		}
		return tasks[n-1], nil
	}

	var found []model.Task
	for _, t := range tasks {
		if strings.HasPrefix(t.ID, ref) {
			found = append(found, t)
		}
	}
	switch len(found) {
	case 0:
		return model.Task{}, fmt.Errorf("%w: %s", tasksync.ErrNotFound, ref)
	case 1:
		return found[0], nil
	}
	return model.Task{}, fmt.Errorf("%w: %s matches %d tasks", errAmbiguous, ref, len(found))
}
