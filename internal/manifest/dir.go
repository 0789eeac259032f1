package manifest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// sqlFileRe matches migration file names such as 0001_create_users.sql.
var sqlFileRe = regexp.MustCompile(`^(\d+)_([^.]+)\.sql$`)

// LoadDir builds a manifest from the .sql files in dir. Each file is one
// migration; its version and description come from the file name, with
// underscores in the description read as spaces. Other files are ignored.
func LoadDir(fs afero.Fs, dir string) (*Manifest, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading directory %s: %v", dir, err)}
	}

	m := &Manifest{Name: filepath.Base(dir)}
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.EqualFold(filepath.Ext(name), ".sql") {
			continue
		}
		match := sqlFileRe.FindStringSubmatch(name)
		if match == nil {
			return nil, &LoadError{
				Code:    ErrCodeBadFileName,
				Message: fmt.Sprintf("%s: expected NNNN_description.sql", name),
			}
		}
		version, err := strconv.ParseUint(match[1], 10, 32)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeBadFileName, Message: fmt.Sprintf("%s: version out of range", name)}
		}
		data, err := afero.ReadFile(fs, filepath.Join(dir, name))
		if err != nil {
			return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", name, err)}
		}
		m.Migrations = append(m.Migrations, Entry{
			Version:     uint32(version),
			Description: strings.ReplaceAll(match[2], "_", " "),
			SQL:         string(data),
		})
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
