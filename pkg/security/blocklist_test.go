package security

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocklist_ExactMatch(t *testing.T) {
	bl, err := New([]string{"delete_repository", "drop_table"})
	require.NoError(t, err)

	assert.True(t, bl.Blocked("delete_repository"))
	assert.True(t, bl.Blocked("drop_table"))
	assert.False(t, bl.Blocked("list_repositories"))
	assert.False(t, bl.Blocked("Delete_Repository"), "matching is case-sensitive by default")
}

func TestBlocklist_GlobPatterns(t *testing.T) {
	bl, err := New([]string{"glob:jira_delete_*", "glob:**_admin"})
	require.NoError(t, err)

	tests := []struct {
		tool    string
		blocked bool
	}{
		{tool: "jira_delete_issue", blocked: true},
		{tool: "jira_delete_project", blocked: true},
		{tool: "jira_create_issue", blocked: false},
		{tool: "figma_admin", blocked: true},
		{tool: "figma_viewer", blocked: false},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			assert.Equal(t, tt.blocked, bl.Blocked(tt.tool))
		})
	}
}

func TestBlocklist_InvalidPattern(t *testing.T) {
	_, err := New([]string{"glob:[unclosed"})
	assert.Error(t, err)
}

func TestBlocklist_CaseInsensitive(t *testing.T) {
	bl, err := New([]string{"Delete_Repo", "glob:Admin_*"}, WithCaseInsensitive())
	require.NoError(t, err)

	assert.True(t, bl.Blocked("delete_repo"))
	assert.True(t, bl.Blocked("DELETE_REPO"))
	assert.True(t, bl.Blocked("admin_reset"))
}

func TestBlocklist_CheckError(t *testing.T) {
	bl, err := New([]string{"rm_rf"})
	require.NoError(t, err)

	checkErr := bl.Check("rm_rf")
	require.Error(t, checkErr)

	var blocked *BlockedError
	require.True(t, errors.As(checkErr, &blocked))
	assert.Equal(t, "rm_rf", blocked.Tool)
}

func TestBlocklist_AddRemove(t *testing.T) {
	bl, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, bl.Size())

	require.NoError(t, bl.Add("danger"))
	require.NoError(t, bl.Add("danger"), "duplicate add is a no-op")
	require.NoError(t, bl.Add("glob:x_*"))
	require.NoError(t, bl.Add("glob:x_*"))
	assert.Equal(t, 2, bl.Size())

	bl.Remove("danger")
	bl.Remove("glob:x_*")
	bl.Remove("never-added")
	assert.Equal(t, 0, bl.Size())
	assert.False(t, bl.Blocked("danger"))

	assert.Error(t, bl.Add(""))
	assert.Error(t, bl.Add("   "))
}
