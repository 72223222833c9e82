package source

import (
	"context"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	perr "finewatch/internal/platform/errors"
)

// S3Fetcher pulls raw dataset drops from object storage. Creation
// notifications carry s3://bucket/key URIs which Fetch resolves to a stream
type S3Fetcher struct {
	client *s3.Client
}

// NewS3Fetcher builds a fetcher from the ambient AWS configuration
// (environment, shared config, instance role)
func NewS3Fetcher(ctx context.Context) (*S3Fetcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "load aws config")
	}
	return &S3Fetcher{client: s3.NewFromConfig(cfg)}, nil
}

// NewS3FetcherFromClient wires an existing client, used by tests
func NewS3FetcherFromClient(client *s3.Client) *S3Fetcher {
	return &S3Fetcher{client: client}
}

// Fetch opens the object behind an s3:// URI. The caller owns the stream
func (f *S3Fetcher) Fetch(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := splitURI(uri)
	if err != nil {
		return nil, err
	}
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "get s3://%s/%s", bucket, key)
	}
	return out.Body, nil
}

// FetchRows fetches and decodes an object in one step, honoring the same
// extension sniffing as local files
func (f *S3Fetcher) FetchRows(ctx context.Context, uri string) ([]map[string]string, error) {
	body, err := f.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	name := strings.TrimSuffix(uri, "/")
	switch {
	case strings.HasSuffix(name, ".ndjson"), strings.HasSuffix(name, ".jsonl"),
		strings.HasSuffix(name, ".ndjson.gz"), strings.HasSuffix(name, ".jsonl.gz"):
		return readMaybeGzip(body, name, ReadNDJSON)
	default:
		return readMaybeGzip(body, name, ReadCSV)
	}
}

func readMaybeGzip(r io.Reader, name string, read func(io.Reader) ([]map[string]string, error)) ([]map[string]string, error) {
	if strings.HasSuffix(name, ".gz") {
		gz, err := newGzip(r)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		return read(gz)
	}
	return read(r)
}

func splitURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", perr.InvalidArgf("not an s3 uri: %q", uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", perr.InvalidArgf("malformed s3 uri: %q", uri)
	}
	return bucket, key, nil
}
