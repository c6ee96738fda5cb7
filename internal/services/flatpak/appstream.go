package flatpak

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"voicerack/internal/services"
)

// RemoteIndex reads the appstream catalogs of every enabled remote and
// returns their components. A missing catalog for one remote is skipped;
// failing to list remotes or to parse a present catalog is an error so the
// caller never works from a partial index.
func (c *Client) RemoteIndex(ctx context.Context) ([]Component, error) {
	remotes, err := c.EnabledRemotes(ctx)
	if err != nil {
		return nil, err
	}

	arch := c.arch
	if arch == "" {
		arch = flatpakArch()
	}

	var components []Component
	visited := make(map[string]struct{})
	for _, inst := range c.installations {
		base := c.installationDir(inst)
		if base == "" {
			continue
		}
		for _, remote := range remotes {
			dir := filepath.Join(base, "appstream", remote, arch, "active")
			if _, ok := visited[dir]; ok {
				continue
			}
			visited[dir] = struct{}{}

			parsed, err := readCatalogDir(dir, remote)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return nil, services.Wrap(services.ErrExternalTool, "flatpak", "read appstream catalog", remote, err)
			}
			components = append(components, parsed...)
		}
	}
	return components, nil
}

func (c *Client) installationDir(installation string) string {
	switch installation {
	case "system":
		if c.systemDir != "" {
			return c.systemDir
		}
		return "/var/lib/flatpak"
	case "user":
		if c.userDir != "" {
			return c.userDir
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, ".local", "share", "flatpak")
	default:
		return ""
	}
}

func readCatalogDir(dir, remote string) ([]Component, error) {
	path := filepath.Join(dir, "appstream.xml.gz")
	file, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		plain := filepath.Join(dir, "appstream.xml")
		file, err = os.Open(plain)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return ParseCatalog(file, remote)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("open gzip catalog: %w", err)
	}
	defer gz.Close()
	return ParseCatalog(gz, remote)
}

type catalogXML struct {
	XMLName    xml.Name       `xml:"components"`
	Components []componentXML `xml:"component"`
}

type componentXML struct {
	ID        string   `xml:"id"`
	Name      string   `xml:"name"`
	Summary   string   `xml:"summary"`
	Extends   []string `xml:"extends"`
	Languages []struct {
		Value string `xml:",chardata"`
	} `xml:"languages>lang"`
	Releases []struct {
		Sizes []struct {
			Type  string `xml:"type,attr"`
			Value string `xml:",chardata"`
		} `xml:"size"`
	} `xml:"releases>release"`
}

// ParseCatalog decodes an appstream catalog document into components.
func ParseCatalog(r io.Reader, remote string) ([]Component, error) {
	var doc catalogXML
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode appstream catalog: %w", err)
	}

	components := make([]Component, 0, len(doc.Components))
	for _, raw := range doc.Components {
		component := Component{
			ID:      strings.TrimSpace(raw.ID),
			Name:    strings.TrimSpace(raw.Name),
			Summary: strings.TrimSpace(raw.Summary),
			Remote:  remote,
		}
		if component.ID == "" {
			continue
		}
		for _, ext := range raw.Extends {
			if ext = strings.TrimSpace(ext); ext != "" {
				component.Extends = append(component.Extends, ext)
			}
		}
		for _, lang := range raw.Languages {
			if tag := strings.TrimSpace(lang.Value); tag != "" {
				component.Languages = append(component.Languages, tag)
			}
		}
		for _, release := range raw.Releases {
			for _, size := range release.Sizes {
				if size.Type != "download" {
					continue
				}
				if bytes, err := strconv.ParseInt(strings.TrimSpace(size.Value), 10, 64); err == nil {
					component.DownloadSize = bytes
				}
			}
			break
		}
		components = append(components, component)
	}
	return components, nil
}

func flatpakArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i386"
	default:
		return runtime.GOARCH
	}
}
