package modules

import (
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"linkvm/pkg/compiled"
	"linkvm/pkg/errors"
)

// Extensions recognised by FSProvider.
const (
	ManifestExt = ".toml" // TOML unit manifest
	BinaryExt   = ".lvmc" // Serialized compiled unit
)

// FSProvider serves units stored in a file system, either as TOML manifests
// or as serialized compiled units. File and path URLs map onto the file
// system root: "/lib/math.mjs" and "file:///lib/math.mjs" both read
// lib/math.mjs.toml (or lib/math.mjs.lvmc).
type FSProvider struct {
	name     string   // Human-readable name
	fs       ModuleFS // File system to read from
	priority int      // Resolution priority

	extensions []string // Suffixes tried after the exact path
}

// NewFSProvider creates a provider reading from filesystem
func NewFSProvider(filesystem fs.FS) *FSProvider {
	var moduleFS ModuleFS
	if mfs, ok := filesystem.(ModuleFS); ok {
		moduleFS = mfs
	} else {
		moduleFS = &fsWrapper{filesystem}
	}

	return &FSProvider{
		name:       "FileSystem",
		fs:         moduleFS,
		priority:   100, // Lower priority than specialized providers
		extensions: []string{ManifestExt, BinaryExt},
	}
}

// NewOSFSProvider creates a provider rooted at baseDir on the OS file system
func NewOSFSProvider(baseDir string) *FSProvider {
	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		absBaseDir = baseDir
	}
	p := NewFSProvider(&osFS{baseDir: absBaseDir})
	p.name = "OSFileSystem"
	return p
}

// Name returns the provider name
func (p *FSProvider) Name() string {
	return p.name
}

// Priority returns the provider priority
func (p *FSProvider) Priority() int {
	return p.priority
}

// SetPriority sets the provider priority
func (p *FSProvider) SetPriority(priority int) {
	p.priority = priority
}

// SetExtensions sets the suffixes tried during resolution
func (p *FSProvider) SetExtensions(extensions []string) {
	p.extensions = extensions
}

// CanProvide returns true for path and file URLs
func (p *FSProvider) CanProvide(rawURL string) bool {
	_, ok := filePath(rawURL)
	return ok
}

// Provide reads and decodes the unit for rawURL
func (p *FSProvider) Provide(rawURL string) (*Module, error) {
	name, err := p.locate(rawURL)
	if err != nil {
		return nil, err
	}
	data, err := p.fs.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	modTime, _ := p.modTime(name)

	var u *compiled.Unit
	if strings.HasSuffix(name, BinaryExt) {
		u, err = compiled.Unmarshal(data, 0)
	} else {
		u, _, err = compiled.LoadManifest(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	if u.SourceTimeStamp == 0 && !modTime.IsZero() {
		u.SourceTimeStamp = modTime.UnixMilli()
	}
	return &Module{URL: rawURL, Unit: u, ModTime: modTime, Provider: p.name}, nil
}

// ModTime reports the modification time of the file backing rawURL
func (p *FSProvider) ModTime(rawURL string) (time.Time, error) {
	name, err := p.locate(rawURL)
	if err != nil {
		return time.Time{}, err
	}
	return p.modTime(name)
}

// Files lists every unit file under dir, as URLs rooted at "/".
func (p *FSProvider) Files(dir string) ([]string, error) {
	var urls []string
	err := fs.WalkDir(p.fs, dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, ext := range p.extensions {
			if strings.HasSuffix(name, ext) {
				urls = append(urls, "/"+strings.TrimSuffix(name, ext))
				break
			}
		}
		return nil
	})
	return urls, err
}

// locate finds the file backing rawURL
func (p *FSProvider) locate(rawURL string) (string, error) {
	name, ok := filePath(rawURL)
	if !ok {
		return "", fmt.Errorf("%s: not a file URL: %w", rawURL, errors.ErrModuleNotFound)
	}
	if p.isFile(name) && p.hasKnownExtension(name) {
		return name, nil
	}
	for _, ext := range p.extensions {
		if p.isFile(name + ext) {
			return name + ext, nil
		}
	}
	return "", fmt.Errorf("%s: %w", rawURL, errors.ErrModuleNotFound)
}

func (p *FSProvider) hasKnownExtension(name string) bool {
	for _, ext := range p.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// isFile checks if a path exists and is a file (not a directory)
func (p *FSProvider) isFile(name string) bool {
	info, err := fs.Stat(p.fs, name)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func (p *FSProvider) modTime(name string) (time.Time, error) {
	info, err := fs.Stat(p.fs, name)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// filePath maps a path or file URL to an fs.FS path
func filePath(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if u.Scheme != "" && u.Scheme != "file" {
		return "", false
	}
	name := strings.TrimPrefix(path.Clean("/"+u.Path), "/")
	if name == "" || !fs.ValidPath(name) {
		return "", false
	}
	return name, true
}

// fsWrapper wraps a generic fs.FS to implement ModuleFS
type fsWrapper struct {
	fs.FS
}

func (w *fsWrapper) ReadFile(name string) ([]byte, error) {
	if rfs, ok := w.FS.(fs.ReadFileFS); ok {
		return rfs.ReadFile(name)
	}

	file, err := w.FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

// osFS implements ModuleFS using the OS file system
type osFS struct {
	baseDir string
}

func (osfs *osFS) Open(name string) (fs.File, error) {
	return os.Open(filepath.Join(osfs.baseDir, name))
}

func (osfs *osFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(osfs.baseDir, name))
}

func (osfs *osFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(filepath.Join(osfs.baseDir, name))
}

func (osfs *osFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(filepath.Join(osfs.baseDir, name))
}
