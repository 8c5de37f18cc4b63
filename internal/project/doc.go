// Package project stores project descriptors on disk.
//
// Project Representation:
//
// Each project is a directory under <data>/projects named by its slug:
//   - project.json holds the descriptor (id, name, slug, description,
//     timestamps and context sources)
//   - context/ holds the markdown context tree
//   - generated/ holds generated documents
//
// The slug is derived from the display name once, at creation, and is the
// only key used to address a project afterwards. Renaming a project never
// moves its directory.
//
// Manager Interface:
//
// The Manager provides CRUD operations for projects:
//   - List: All readable projects, skipping corrupt descriptors
//   - Get: Retrieve a project by slug
//   - Create: Claim a slug and write the initial descriptor
//   - Update: Merge a Patch, keeping id and slug fixed
//   - Delete: Remove the project directory and everything in it
package project
