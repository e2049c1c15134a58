// Package transfer uploads, downloads, deletes and lists files between the local
// filesystem and a GitHub repository through the contents API.
//
// Directory uploads build a fresh ignore.Filter rooted at the uploaded directory,
// prune excluded directories during the walk and send the remaining files on a
// bounded errgroup pool. A failed file is recorded in the Result and the rest of
// the tree continues.
package transfer
