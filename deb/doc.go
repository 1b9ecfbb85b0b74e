// Package deb is a pure Go library for assembling Debian binary packages.
//
// # Design Philosophy
//
// A Package is a plain declaration: metadata, an optional control block
// (custom control fields, maintainer scripts and conffiles, debconf
// templates) and an ordered list of resource collections for the payload.
// Nothing is resolved until the package is written, and writing never
// mutates the declaration. No external tool such as 'dpkg-deb' is needed.
//
// The ar container declares each member's length before its content, so
// control.tar.gz and data.tar.gz are first materialized in buffers that
// keep small members in memory and spill large ones to temporary files.
// Every buffer is released when the build returns, successful or not.
//
// # Features
//
// Package Assembly:
//   - Control file generation with custom fields and computed Installed-Size.
//   - Extended (continuation line) encoding of descriptions.
//   - Debconf 'templates' file generation.
//   - Resource collections with prefixes, ownership and permission
//     overrides, symbolic links and implicit parent directories.
//   - GNU tar long names.
//
// Resource Sources:
//   - In-memory resources (ResourceList).
//   - Plain file trees with include/exclude patterns (DirSource).
//   - Nested .tar, .tar.gz and .tar.xz archives (ArchiveSource).
//
// Reference: https://manpages.debian.org/unstable/dpkg-dev/deb.5.en.html
package deb
