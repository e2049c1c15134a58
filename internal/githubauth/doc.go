// Package githubauth resolves the GitHub token used by minigit from flags,
// configuration, token sources and the conventional environment variables.
package githubauth
