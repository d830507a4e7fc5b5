package db

import (
	"strings"
	"testing"
)

const repositoryTestPrefix = "db:repository_test"

func TestNullable(t *testing.T) {
	if nullable("") != nil {
		t.Errorf("%s - nullable(\"\") should be nil", repositoryTestPrefix)
	}
	if p := nullable("ab"); p == nil || *p != "ab" {
		t.Errorf("%s - nullable(\"ab\") = %v", repositoryTestPrefix, p)
	}
}

func TestTable_ParentColumn(t *testing.T) {
	tests := map[Table]string{
		TableManagers: "parent_id",
		TableStreams:  "manager_id",
		TableObjects:  "stream_id",
	}
	for table, want := range tests {
		if got := table.parentColumn(); got != want {
			t.Errorf("%s - %s.parentColumn() = %q, want %q", repositoryTestPrefix, table, got, want)
		}
	}
}

func TestManagerScope(t *testing.T) {
	tests := []struct {
		name      string
		parentID  string
		recurse   bool
		wantArgs  int
		wantInSQL string
	}{
		{"top level children", "", false, 1, "IS NOT DISTINCT FROM $1"},
		{"manager children", "ab", false, 1, "IS NOT DISTINCT FROM $1"},
		{"everything", "", true, 0, "SELECT id FROM managers"},
		{"descendants", "ab", true, 1, "WITH RECURSIVE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := managerScope(tt.parentID, tt.recurse)
			if len(args) != tt.wantArgs {
				t.Errorf("%s - got %d args, want %d", repositoryTestPrefix, len(args), tt.wantArgs)
			}
			if !strings.Contains(query, tt.wantInSQL) {
				t.Errorf("%s - query %q should contain %q", repositoryTestPrefix, query, tt.wantInSQL)
			}
		})
	}

	_, args := managerScope("", false)
	if p, ok := args[0].(*string); !ok || p != nil {
		t.Errorf("%s - top-level scope should bind NULL, got %#v", repositoryTestPrefix, args[0])
	}
}
