package csvmigrate

import "io"

// FileProvider supplies configuration files to the config loader.
type FileProvider interface {
	Load(f FileProviderCallback) error
}

// FileProviderCallback is called for each provided file.
type FileProviderCallback func(info FileInfo) error

// FileInfo is one provided configuration file.
type FileInfo struct {
	Name string
	File io.Reader
}
