//go:build !sqlite
// +build !sqlite

package storage

import (
	"errors"

	logx "gradewatch/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	return nil, errors.New("sqlite journal driver not built in (rebuild with -tags sqlite)")
}
