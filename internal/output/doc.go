// Package output writes regenerated index files and renders the diff
// between the file on disk and its regenerated content.
//
//   - Writing (writer.go): [FileWriter] replaces index and settings files
//     atomically.
//
//   - Diffs (diff.go): git-style unified diffs used by dry runs.
package output
