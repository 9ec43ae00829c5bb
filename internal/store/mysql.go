package store

import (
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// normalizeMySQLDSN makes UPDATE report matched rather than changed rows, so
// that adding zero to an existing row still counts as one affected row, and
// scans TIMESTAMP columns into time.Time.
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parsing mysql dsn")
	}
	cfg.ClientFoundRows = true
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}
