package launch

import (
	"bytes"
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordCommands replaces the process launcher with one that runs `true`
// and remembers what would have been executed.
func recordCommands(t *testing.T) *[][]string {
	t.Helper()
	var calls [][]string
	orig := command
	command = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, append([]string{name}, args...))
		return exec.CommandContext(ctx, "true")
	}
	t.Cleanup(func() { command = orig })
	return &calls
}

func TestCloneURL(t *testing.T) {
	tests := []struct {
		target  string
		want    string
		wantErr bool
	}{
		{"rust-lang/rust", "https://github.com/rust-lang/rust.git", false},
		{"  golang/go ", "https://github.com/golang/go.git", false},
		{"https://gitlab.com/inkscape/inkscape.git", "https://gitlab.com/inkscape/inkscape.git", false},
		{"http://git.example.org/a/b", "http://git.example.org/a/b", false},
		{"", "", true},
		{"rust", "", true},
		{"a/b/c", "", true},
		{"/rust", "", true},
		{"--upload-pack=evil/x", "", true},
		{"file:///etc/passwd", "", true},
		{"https://", "", true},
	}
	for _, tt := range tests {
		got, err := CloneURL(tt.target)
		if tt.wantErr {
			assert.Error(t, err, tt.target)
			continue
		}
		require.NoError(t, err, tt.target)
		assert.Equal(t, tt.want, got)
	}
}

func TestWebURL(t *testing.T) {
	got, err := WebURL("golang/go")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/golang/go", got)

	got, err = WebURL("https://gitea.com/gitea/tea")
	require.NoError(t, err)
	assert.Equal(t, "https://gitea.com/gitea/tea", got)

	_, err = WebURL("javascript:alert(1)")
	assert.Error(t, err)
}

func TestSplitRepo(t *testing.T) {
	owner, name, err := SplitRepo("golang/go")
	require.NoError(t, err)
	assert.Equal(t, "golang", owner)
	assert.Equal(t, "go", name)

	_, _, err = SplitRepo("golang")
	assert.Error(t, err)
}

func TestClone(t *testing.T) {
	calls := recordCommands(t)

	var out, errOut bytes.Buffer
	require.NoError(t, Clone(context.Background(), "golang/go", &out, &errOut))
	require.Len(t, *calls, 1)
	assert.Equal(t, []string{"git", "clone", "--", "https://github.com/golang/go.git"}, (*calls)[0])
}

func TestCloneRejectsBadTargetWithoutRunningGit(t *testing.T) {
	calls := recordCommands(t)

	err := Clone(context.Background(), "not a repo", nil, nil)
	assert.Error(t, err)
	assert.Empty(t, *calls)
}

func TestOpenRejectsNonHTTP(t *testing.T) {
	calls := recordCommands(t)

	for _, u := range []string{"file:///etc/passwd", "javascript:alert(1)", "ftp://example.com", ""} {
		assert.Error(t, Open(u), u)
	}
	assert.Empty(t, *calls)

	require.NoError(t, Open("https://github.com/golang/go"))
	require.Len(t, *calls, 1)
	assert.Equal(t, "https://github.com/golang/go", (*calls)[0][len((*calls)[0])-1])
}

func TestOpener(t *testing.T) {
	name, _ := opener("darwin")
	assert.Equal(t, "open", name)
	name, args := opener("windows")
	assert.Equal(t, "rundll32", name)
	assert.Equal(t, []string{"url.dll,FileProtocolHandler"}, args)
	name, _ = opener("linux")
	assert.Equal(t, "xdg-open", name)
}
