package transfer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/minigit/internal/prompt"
	"github.com/temirov/minigit/internal/session"
	"github.com/temirov/minigit/internal/transfer"
)

type commandHarness struct {
	repository *fakeRepository
	session    session.Session
	terminal   bool
	stdout     *bytes.Buffer
	stderr     *bytes.Buffer
}

func newCommandHarness(repository *fakeRepository) *commandHarness {
	return &commandHarness{
		repository: repository,
		session:    session.Session{Repository: transferRepository},
		stdout:     &bytes.Buffer{},
		stderr:     &bytes.Buffer{},
	}
}

func (harness *commandHarness) execute(testInstance *testing.T, input string, arguments ...string) error {
	testInstance.Helper()
	builder := transfer.CommandBuilder{
		SessionProvider: func() (session.Session, error) { return harness.session, nil },
		ClientProvider: func(context.Context) (transfer.GitHubClient, error) {
			return harness.repository, nil
		},
		TerminalDetector: prompt.TerminalDetector(func(io.Reader) bool { return harness.terminal }),
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	command.SetArgs(arguments)
	command.SetIn(strings.NewReader(input))
	command.SetOut(harness.stdout)
	command.SetErr(harness.stderr)
	command.SilenceUsage = true
	command.SilenceErrors = true
	return command.ExecuteContext(context.Background())
}

func TestDeleteCommandConfirmation(testInstance *testing.T) {
	testCases := []struct {
		name            string
		arguments       []string
		terminal        bool
		input           string
		expectedError   error
		expectedDeletes int
	}{
		{name: "non_interactive_requires_yes", arguments: []string{"rm", "notes.txt"}, expectedError: prompt.ErrConfirmationRequired},
		{name: "interactive_declined", arguments: []string{"rm", "notes.txt"}, terminal: true, input: "n\n", expectedError: prompt.ErrConfirmationDeclined},
		{name: "interactive_confirmed", arguments: []string{"rm", "notes.txt"}, terminal: true, input: "yes\n", expectedDeletes: 1},
		{name: "assume_yes_flag", arguments: []string{"rm", "--yes", "notes.txt"}, expectedDeletes: 1},
		{name: "root_refused", arguments: []string{"rm", "--yes", "/"}, expectedError: transfer.ErrRootDeletion},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(transferSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			harness := newCommandHarness(newFakeRepository(map[string]string{"notes.txt": "n"}))
			harness.terminal = testCase.terminal

			executionError := harness.execute(testInstance, testCase.input, append([]string{}, testCase.arguments...)...)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, executionError, testCase.expectedError)
			} else {
				require.NoError(testInstance, executionError)
				require.Contains(testInstance, harness.stdout.String(), "rm: 1 succeeded, 0 failed, 0 skipped")
			}
			require.Len(testInstance, harness.repository.deletes, testCase.expectedDeletes)
		})
	}
}

func TestUploadCommandResolvesSessionPaths(testInstance *testing.T) {
	localDirectory := testInstance.TempDir()
	writeTree(testInstance, localDirectory, map[string]string{"site/index.html": "<html>", "site/app.log": "noise", "site/.gitignore": "*.log\n"})

	harness := newCommandHarness(newFakeRepository(nil))
	harness.session.LocalDirectory = localDirectory
	harness.session.RemoteDirectory = "public"

	executionError := harness.execute(testInstance, "", "upload", "site", "--remote-dir", "v1")
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, []string{"public/v1/site/.gitignore", "public/v1/site/index.html"}, harness.repository.putPaths())
	require.Contains(testInstance, harness.stdout.String(), "upload: 2 succeeded, 0 failed, 1 skipped")
	require.Contains(testInstance, harness.stderr.String(), "[100%]")
}

func TestDownloadCommandOverwriteGate(testInstance *testing.T) {
	localDirectory := testInstance.TempDir()
	writeTree(testInstance, localDirectory, map[string]string{"report.txt": "local"})

	harness := newCommandHarness(newFakeRepository(map[string]string{"report.txt": "remote"}))
	harness.session.LocalDirectory = localDirectory

	refusedError := harness.execute(testInstance, "", "download", "report.txt")
	require.ErrorIs(testInstance, refusedError, prompt.ErrConfirmationRequired)

	acceptedError := harness.execute(testInstance, "", "download", "report.txt", "-y")
	require.NoError(testInstance, acceptedError)
	require.FileExists(testInstance, filepath.Join(localDirectory, "report.txt"))
	require.Contains(testInstance, harness.stdout.String(), "download: 1 succeeded")
}

func TestListRemoteCommandFormats(testInstance *testing.T) {
	harness := newCommandHarness(newFakeRepository(map[string]string{"docs/guide.md": "guide", "README.md": "readme"}))

	jsonError := harness.execute(testInstance, "", "ls", "--format", "json")
	require.NoError(testInstance, jsonError)

	var decoded struct {
		Kind     string `json:"type"`
		Children []struct {
			Kind string `json:"type"`
			Name string `json:"name"`
		} `json:"children"`
	}
	require.NoError(testInstance, json.Unmarshal(harness.stdout.Bytes(), &decoded))
	require.Equal(testInstance, "dir", decoded.Kind)
	require.Len(testInstance, decoded.Children, 2)
	require.Equal(testInstance, "docs", decoded.Children[0].Name)
	require.Equal(testInstance, "README.md", decoded.Children[1].Name)

	harness.stdout.Reset()
	tableError := harness.execute(testInstance, "", "ls", "docs")
	require.NoError(testInstance, tableError)
	require.Contains(testInstance, harness.stdout.String(), "guide.md")
	require.Contains(testInstance, harness.stdout.String(), "TYPE")

	harness.stdout.Reset()
	invalidError := harness.execute(testInstance, "", "ls", "--format", "xml")
	require.Error(testInstance, invalidError)
}

func TestListLocalCommandFlagsExcludedEntries(testInstance *testing.T) {
	localDirectory := testInstance.TempDir()
	writeTree(testInstance, localDirectory, map[string]string{".gitignore": "dist/\n", "dist/bundle.js": "b", "main.go": "m"})

	harness := newCommandHarness(newFakeRepository(nil))
	executionError := harness.execute(testInstance, "", "local", localDirectory, "--format", "yaml")
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, harness.stdout.String(), "name: dist")
	require.Contains(testInstance, harness.stdout.String(), "excluded: true")
	require.Contains(testInstance, harness.stdout.String(), "name: main.go")
}

func TestCommandRequiresSessionProvider(testInstance *testing.T) {
	builder := transfer.CommandBuilder{}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	command.SetArgs([]string{"ls"})
	command.SetOut(io.Discard)
	command.SetErr(io.Discard)
	command.SilenceUsage = true
	command.SilenceErrors = true
	require.Error(testInstance, command.ExecuteContext(context.Background()))
}
