package selection

import (
	"fmt"
	"testing"
)

func TestToggleAndSubset(t *testing.T) {
	s := New()
	s.Load([]string{"p1", "p2", "p3"})

	if !s.Toggle("p2") {
		t.Error("expected p2 selected")
	}
	if s.Toggle("p9") {
		t.Error("unknown id must not be selected")
	}
	if s.Toggle("p2") {
		t.Error("second toggle must deselect")
	}
	s.Toggle("p3")
	s.Toggle("p1")
	if got := fmt.Sprint(s.IDs()); got != "[p1 p3]" {
		t.Errorf("expected load order, got %s", got)
	}
}

func TestSelectAllAndClear(t *testing.T) {
	s := New()
	s.Load([]string{"a", "b"})
	s.SelectAll()
	if s.Len() != 2 || !s.IsSelected("a") || !s.IsSelected("b") {
		t.Errorf("select all missed ids: %v", s.IDs())
	}
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("clear left %v", s.IDs())
	}
	if len(s.Loaded()) != 2 {
		t.Error("clear must keep loaded ids")
	}
}

func TestLoadResetsSelection(t *testing.T) {
	s := New()
	s.Load([]string{"a", "b"})
	s.SelectAll()
	s.Load([]string{"b", "c"})
	if s.Len() != 0 {
		t.Errorf("selection survived a new load: %v", s.IDs())
	}
	if s.Toggle("a") {
		t.Error("id from previous collection accepted")
	}
}

func TestRestoreDropsUnknown(t *testing.T) {
	s := New()
	s.Restore([]string{"a", "b"}, []string{"b", "z"})
	if got := fmt.Sprint(s.IDs()); got != "[b]" {
		t.Errorf("unexpected selection %s", got)
	}
}
