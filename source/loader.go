package source

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Options configures a Loader.
type Options struct {
	// RetryMax is how many times a failed HTTP request is retried.
	RetryMax int
	// Timeout bounds every HTTP request.
	Timeout time.Duration
	// S3Region and S3Endpoint configure the S3 client. An endpoint
	// switches to path-style addressing for S3-compatible stores.
	S3Region   string
	S3Endpoint string
	Log        zerolog.Logger
}

// S3API is the part of the S3 client the loader uses.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Loader resolves source references into images.
type Loader struct {
	http *retryablehttp.Client
	s3   S3API
	opts Options
	log  zerolog.Logger

	// Progress, when set, is called after every fetched image.
	Progress func(done, total int)
}

// entry is a single fetchable image found while resolving a reference.
type entry struct {
	name  string
	ref   string
	fetch func(ctx context.Context) ([]byte, error)
}

// NewLoader creates a Loader. The S3 client is created on first use.
func NewLoader(opts Options) *Loader {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = retryLogger{log: opts.Log}
	if opts.Timeout > 0 {
		client.HTTPClient.Timeout = opts.Timeout
	}

	return &Loader{
		http: client,
		opts: opts,
		log:  opts.Log,
	}
}

// WithS3 makes the loader use api instead of a client built from the
// default AWS configuration.
func (l *Loader) WithS3(api S3API) *Loader {
	l.s3 = api
	return l
}

// Load resolves every reference and fetches the images in order.
// References that cannot be resolved are errors. Images that fail to
// download or decode are logged and left out.
func (l *Loader) Load(ctx context.Context, refs []string) ([]Image, error) {
	var entries []entry
	for _, ref := range refs {
		found, err := l.resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		entries = append(entries, found...)
	}

	images := make([]Image, 0, len(entries))
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := e.fetch(ctx)
		if err == nil {
			var img Image
			img.Name, img.Ref = e.name, e.ref
			img.Image, err = Decode(data)
			if err == nil {
				images = append(images, img)
			}
		}
		if err != nil {
			l.log.Warn().Err(err).Str("ref", e.ref).Msg("skipping image")
		}
		if l.Progress != nil {
			l.Progress(i+1, len(entries))
		}
	}

	l.log.Info().Int("images", len(images)).Int("refs", len(refs)).Msg("sources loaded")
	return images, nil
}

func (l *Loader) resolve(ctx context.Context, ref string) ([]entry, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return []entry{l.httpEntry(ref)}, nil
	case strings.HasPrefix(ref, "s3://"):
		return l.resolveS3(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		return resolveLocal(strings.TrimPrefix(ref, "file://"))
	case strings.Contains(ref, "://"):
		return nil, errors.Errorf("unsupported source %q", ref)
	}
	return resolveLocal(ref)
}

// resolveLocal expands a directory into its image files sorted by name.
func resolveLocal(p string) ([]entry, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, errors.Wrapf(err, "source %s", p)
	}
	if !info.IsDir() {
		return []entry{fileEntry(p)}, nil
	}

	dirEntries, err := os.ReadDir(p)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %s", p)
	}
	var entries []entry
	for _, de := range dirEntries {
		if de.IsDir() || !IsImagePath(de.Name()) {
			continue
		}
		entries = append(entries, fileEntry(filepath.Join(p, de.Name())))
	}
	return entries, nil
}

func fileEntry(p string) entry {
	return entry{
		name: filepath.Base(p),
		ref:  p,
		fetch: func(context.Context) ([]byte, error) {
			data, err := os.ReadFile(p)
			return data, errors.Wrap(err, "failed to read image file")
		},
	}
}

func (l *Loader) httpEntry(ref string) entry {
	name := ref
	if u, err := url.Parse(ref); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		name = path.Base(u.Path)
	}
	return entry{
		name: name,
		ref:  ref,
		fetch: func(ctx context.Context) ([]byte, error) {
			return l.get(ctx, ref)
		},
	}
}

func (l *Loader) get(ctx context.Context, ref string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to download image")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("image download failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image data")
	}
	return data, nil
}

// parseS3 splits s3://bucket/prefix.
func parseS3(ref string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(ref, "s3://")
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", errors.Errorf("missing bucket in %q", ref)
	}
	return bucket, key, nil
}

// resolveS3 treats a key with an image extension as a single object and
// anything else as a prefix to list.
func (l *Loader) resolveS3(ctx context.Context, ref string) ([]entry, error) {
	bucket, key, err := parseS3(ref)
	if err != nil {
		return nil, err
	}
	api, err := l.s3Client(ctx)
	if err != nil {
		return nil, err
	}

	if IsImagePath(key) {
		return []entry{l.s3Entry(api, bucket, key)}, nil
	}

	var keys []string
	pager := s3.NewListObjectsV2Paginator(api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(key),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "list %s", ref)
		}
		for _, obj := range page.Contents {
			if k := aws.ToString(obj.Key); IsImagePath(k) {
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)

	entries := make([]entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, l.s3Entry(api, bucket, k))
	}
	return entries, nil
}

func (l *Loader) s3Entry(api S3API, bucket, key string) entry {
	return entry{
		name: path.Base(key),
		ref:  "s3://" + bucket + "/" + key,
		fetch: func(ctx context.Context) ([]byte, error) {
			out, err := api.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				return nil, errors.Wrapf(err, "get s3://%s/%s", bucket, key)
			}
			defer out.Body.Close()
			data, err := io.ReadAll(out.Body)
			return data, errors.Wrap(err, "failed to read image data")
		},
	}
}

func (l *Loader) s3Client(ctx context.Context) (S3API, error) {
	if l.s3 != nil {
		return l.s3, nil
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if l.opts.S3Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(l.opts.S3Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	endpoint := l.opts.S3Endpoint
	l.s3 = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return l.s3, nil
}

// retryLogger forwards retryablehttp messages to zerolog.
type retryLogger struct {
	log zerolog.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}
