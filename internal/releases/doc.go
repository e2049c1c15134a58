// Package releases lists, publishes and deletes GitHub releases of the session
// repository. Publishing validates every asset path before the release is created.
package releases
