package session

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// File is a spreadsheet chosen by the user
type File interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// PathFile is a file on the local filesystem
type PathFile string

func (p PathFile) Name() string { return filepath.Base(string(p)) }

func (p PathFile) Open() (io.ReadCloser, error) { return os.Open(string(p)) }

// MemFile is an in-memory file, used by tests and piped input
type MemFile struct {
	Filename string
	Data     []byte
}

func (m MemFile) Name() string { return m.Filename }

func (m MemFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.Data)), nil
}

// FileFromPath turns typed or pasted input into a File. Blank input means the
// user cancelled and yields nil. Quotes and escaped spaces from terminal
// drag-and-drop are stripped, and a leading ~ expands to the home directory.
func FileFromPath(input string) File {
	path := strings.TrimSpace(input)
	if len(path) >= 2 {
		if (path[0] == '"' && path[len(path)-1] == '"') || (path[0] == '\'' && path[len(path)-1] == '\'') {
			path = path[1 : len(path)-1]
		}
	}
	path = strings.ReplaceAll(path, `\ `, " ")
	if path == "" {
		return nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return PathFile(path)
}
