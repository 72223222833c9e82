package source

import (
	"compress/gzip"
	"io"

	perr "finewatch/internal/platform/errors"
)

func newGzip(r io.Reader) (*gzip.Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeValidation, "gunzip stream")
	}
	return gz, nil
}
