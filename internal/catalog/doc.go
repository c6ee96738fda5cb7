// Package catalog discovers installable speech voices from the bundle
// manager's remote index: appstream components whose id carries the voice
// marker and that extend exactly one speech-provider component.
package catalog
