package pathutils_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/minigit/internal/utils/path"
)

const testHomeDirectoryConstant = "/home/tester"

func TestHomeExpanderExpand(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return testHomeDirectoryConstant, nil })

	testCases := []struct {
		name         string
		candidate    string
		expectedPath string
	}{
		{name: "tilde_only", candidate: "~", expectedPath: testHomeDirectoryConstant},
		{name: "tilde_prefix", candidate: "~/projects/site", expectedPath: filepath.Join(testHomeDirectoryConstant, "projects", "site")},
		{name: "absolute_untouched", candidate: "/srv/data", expectedPath: "/srv/data"},
		{name: "other_user_untouched", candidate: "~other/data", expectedPath: "~other/data"},
		{name: "empty", candidate: "", expectedPath: ""},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedPath, expander.Expand(testCase.candidate))
		})
	}
}

func TestHomeExpanderProviderFailureLeavesPath(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return "", errors.New("no home") })
	require.Equal(testInstance, "~/data", expander.Expand("~/data"))
}

func TestHomeExpanderResolveLocalDirectory(testInstance *testing.T) {
	workingDirectory := testInstance.TempDir()
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return testHomeDirectoryConstant, nil })

	resolvedFallback, fallbackError := expander.ResolveLocalDirectory("  ", workingDirectory)
	require.NoError(testInstance, fallbackError)
	require.Equal(testInstance, workingDirectory, resolvedFallback)

	resolvedHome, homeError := expander.ResolveLocalDirectory("~/downloads", workingDirectory)
	require.NoError(testInstance, homeError)
	require.Equal(testInstance, filepath.Join(testHomeDirectoryConstant, "downloads"), resolvedHome)
}
