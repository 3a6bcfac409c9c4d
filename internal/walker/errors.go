package walker

import "github.com/boostgo/errorx"

var (
	ErrRootNotExist     = errorx.New("ansafs.walker.root_not_exist")
	ErrRootNotDirectory = errorx.New("ansafs.walker.root_not_directory")
	ErrStatRoot         = errorx.New("ansafs.walker.root_stat")
	ErrCreatePool       = errorx.New("ansafs.walker.create_pool")
)

type pathErrorContext struct {
	Path  string `json:"path"`
	Error error  `json:"error"`
}

func newRootStatError(path string, err error) error {
	base := ErrStatRoot
	if isNotExist(err) {
		base = ErrRootNotExist
	}
	return base.
		SetError(err).
		SetData(pathErrorContext{
			Path:  path,
			Error: err,
		})
}

func newRootNotDirectoryError(path string) error {
	return ErrRootNotDirectory.
		SetData(pathErrorContext{
			Path: path,
		})
}
