package simulation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/simgate-dev/simgate/internal/errors"
)

// DefaultMaxSourceSize bounds documents read by a Fetcher.
const DefaultMaxSourceSize = 8 << 20

// ObjectGetter is the subset of *s3.Client the Fetcher uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Fetcher reads documents referenced by http, https, file and s3 URLs.
type Fetcher struct {
	client   *http.Client
	s3       ObjectGetter
	fileRoot string
	maxBytes int64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the client used for http and https URLs.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithObjectGetter sets the client used for s3 URLs.
func WithObjectGetter(g ObjectGetter) FetcherOption {
	return func(f *Fetcher) {
		f.s3 = g
	}
}

// WithFileRoot enables file URLs for paths inside root. Without it file URLs
// are rejected.
func WithFileRoot(root string) FetcherOption {
	return func(f *Fetcher) {
		f.fileRoot = root
	}
}

// WithMaxBytes bounds the size of fetched documents.
func WithMaxBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// NewFetcher creates a Fetcher. Without options it uses an HTTP client with
// a 30 second timeout and has no S3 or file access.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: DefaultMaxSourceSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewS3Client returns an anonymous S3 client for public buckets in region.
func NewS3Client(region string) *s3.Client {
	return s3.New(s3.Options{
		Region:      region,
		Credentials: aws.AnonymousCredentials{},
	})
}

// Fetch reads the document at u.
func (f *Fetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	if u == nil {
		return nil, fmt.Errorf("%w: nil url", ErrMalformedURL)
	}

	var (
		body io.ReadCloser
		err  error
	)
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		body, err = f.openHTTP(ctx, u)
	case "file":
		body, err = f.openFile(u)
	case "s3":
		body, err = f.openS3(ctx, u)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if err != nil {
		return nil, errors.New("E302").WithDetail(u.String()).Wrap(err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		return nil, errors.New("E302").WithDetail(u.String()).Wrap(err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, errors.New("E302").
			WithDetail(fmt.Sprintf("%s exceeds %d bytes", u, f.maxBytes))
	}
	return data, nil
}

// openFile opens u.Path after resolving symlinks, provided it lies inside
// the configured root.
func (f *Fetcher) openFile(u *url.URL) (io.ReadCloser, error) {
	if f.fileRoot == "" {
		return nil, fmt.Errorf("%w: file sources are disabled", ErrUnsupportedScheme)
	}
	root, err := filepath.EvalSymlinks(f.fileRoot)
	if err != nil {
		return nil, err
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	path, err := filepath.EvalSymlinks(filepath.Clean(u.Path))
	if err != nil {
		return nil, err
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s is outside %s", ErrForbiddenPath, u.Path, f.fileRoot)
	}
	return os.Open(path)
}

func (f *Fetcher) openHTTP(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

func (f *Fetcher) openS3(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	if f.s3 == nil {
		return nil, fmt.Errorf("no s3 client configured")
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, fmt.Errorf("%w: s3 url needs bucket and key", ErrMalformedURL)
	}
	out, err := f.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}
