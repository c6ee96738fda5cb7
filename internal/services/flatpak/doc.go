// Package flatpak shells out to the flatpak CLI to query remotes, read
// appstream catalogs, list installed refs, and install or remove bundles.
// When voicerack itself runs inside a sandbox, commands are routed through
// flatpak-spawn --host.
package flatpak
