package upload

import (
	"io/fs"
	"net/http"
	"path/filepath"
)

// FileServer serves the stored images under dir. Directories are reported
// as missing, so the upload folder can never be listed.
func FileServer(dir string) http.Handler {
	return http.FileServer(filesOnly{http.Dir(filepath.Clean(dir))})
}

type filesOnly struct {
	root http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}
