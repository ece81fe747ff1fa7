package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang/snappy"
)

// SnappyExt marks destinations written as a snappy framed stream.
const SnappyExt = ".sz"

// ErrInvalidDestination is returned for destinations Open cannot parse.
var ErrInvalidDestination = errors.New("invalid output destination")

// PutObjectAPI is the part of the S3 client used by the s3:// sink.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options tunes the client built for s3:// destinations when no client
// is injected. Zero values fall back to the default AWS configuration chain.
type S3Options struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
	// Static keys replace the default credential chain when both are set.
	AccessKeyID     string
	SecretAccessKey string
}

type sinkOptions struct {
	stdout io.Writer
	s3     PutObjectAPI
	s3opts S3Options
}

// SinkOption configures Open.
type SinkOption func(*sinkOptions)

// WithStdout replaces os.Stdout as the target for "" and "-".
func WithStdout(w io.Writer) SinkOption {
	return func(o *sinkOptions) { o.stdout = w }
}

// WithS3Client sets the client used for s3:// destinations. Without it the
// default AWS configuration chain is loaded on first use.
func WithS3Client(c PutObjectAPI) SinkOption {
	return func(o *sinkOptions) { o.s3 = c }
}

// WithS3Options configures the S3 client built when WithS3Client is not used.
func WithS3Options(opts S3Options) SinkOption {
	return func(o *sinkOptions) { o.s3opts = opts }
}

// Open returns a writer for dest:
//
//	"" or "-"          standard output
//	s3://bucket/key    uploaded with PutObject on Close
//	anything else      a local file, parent directories created
//
// A destination ending in .sz is snappy-compressed in every case. Callers
// must Close the writer; for S3 that is when the upload happens.
func Open(ctx context.Context, dest string, opts ...SinkOption) (io.WriteCloser, error) {
	o := sinkOptions{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		base io.WriteCloser
		err  error
	)
	switch {
	case dest == "" || dest == "-":
		return nopCloser{o.stdout}, nil
	case strings.HasPrefix(dest, "s3://"):
		base, err = openS3(ctx, dest, o.s3, o.s3opts)
	default:
		base, err = openFile(dest)
	}
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(dest), SnappyExt) {
		return &snappySink{w: snappy.NewBufferedWriter(base), base: base}, nil
	}
	return base, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func openFile(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

// ParseS3URI splits s3://bucket/key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not an s3:// URI", ErrInvalidDestination, uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: %q needs a bucket and an object key", ErrInvalidDestination, uri)
	}
	return bucket, key, nil
}

type s3Sink struct {
	ctx    context.Context
	client PutObjectAPI
	bucket string
	key    string
	buf    bytes.Buffer
	closed bool
}

func openS3(ctx context.Context, uri string, client PutObjectAPI, opts S3Options) (io.WriteCloser, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client, err = newS3Client(ctx, opts)
		if err != nil {
			return nil, err
		}
	}
	return &s3Sink{ctx: ctx, client: client, bucket: bucket, key: key}, nil
}

func newS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, s3LoadOptions(opts)...)
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	}), nil
}

func s3LoadOptions(opts S3Options) []func(*awsconfig.LoadOptions) error {
	var load []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		load = append(load, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		load = append(load, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	return load
}

func (s *s3Sink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, os.ErrClosed
	}
	return s.buf.Write(p)
}

func (s *s3Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	contentType := "application/json"
	if strings.EqualFold(filepath.Ext(s.key), SnappyExt) {
		contentType = "application/x-snappy-framed"
	}
	_, err := s.client.PutObject(s.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(s.buf.Bytes()),
		ContentLength: aws.Int64(int64(s.buf.Len())),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

type snappySink struct {
	w    *snappy.Writer
	base io.WriteCloser
}

func (s *snappySink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Close flushes the snappy stream before closing the underlying sink.
func (s *snappySink) Close() error {
	return errors.Join(s.w.Close(), s.base.Close())
}
