package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Config describes the S3-compatible endpoint the Gateway talks to.
type Config struct {
	// Endpoint is "http(s)://host[:port]" or "host[:port]" (plain HTTP,
	// port 9000 by default). Empty means AWS S3 for Region.
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	// PublicURL, when set, replaces the scheme and host of every issued URL
	// so clients reach the store through a public hostname.
	PublicURL string
	URLMode   URLMode
	// MaxConns bounds the connection pool shared by all requests.
	MaxConns int
}

// Gateway is a Store backed by an S3-compatible service (MinIO in the
// default deployment). It is safe for concurrent use.
type Gateway struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	region    string
	mode      URLMode
	endpoint  *url.URL
	public    *url.URL

	// httpClient is the client the SDK settled on; it may wrap ours when
	// AWS_CA_BUNDLE adds root CAs.
	httpClient aws.HTTPClient
}

// NormalizeEndpoint turns the configured endpoint into an absolute URL.
// "host:port" and "host" forms are treated as plain HTTP, defaulting to
// port 9000.
func NormalizeEndpoint(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid storage endpoint %q", raw)
		}
		return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
	}
	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		host, port = raw, "9000"
	}
	if host == "" {
		return nil, fmt.Errorf("invalid storage endpoint %q", raw)
	}
	return &url.URL{Scheme: "http", Host: net.JoinHostPort(host, port)}, nil
}

// New constructs a Gateway. It does not contact the service; call
// EnsureBucket to verify connectivity.
func New(ctx context.Context, cfg Config) (*Gateway, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.URLMode == "" {
		cfg.URLMode = URLModePresigned
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 64
	}

	endpoint, err := NormalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	var public *url.URL
	if cfg.PublicURL != "" {
		public, err = url.Parse(cfg.PublicURL)
		if err != nil || public.Host == "" {
			return nil, fmt.Errorf("invalid storage public url %q", cfg.PublicURL)
		}
	}

	httpClient := awshttp.NewBuildableClient().WithTransportOptions(func(tr *http.Transport) {
		tr.MaxIdleConns = cfg.MaxConns
		tr.MaxIdleConnsPerHost = cfg.MaxConns
		tr.MaxConnsPerHost = cfg.MaxConns
	})

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpClient),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != nil {
			o.BaseEndpoint = aws.String(endpoint.String())
		}
		o.UsePathStyle = true
	})

	log.Info("gateway ready: endpoint=%s bucket=%s mode=%s public=%s",
		endpointString(endpoint, cfg.Region), cfg.Bucket, cfg.URLMode, cfg.PublicURL)

	return &Gateway{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		httpClient: awsCfg.HTTPClient,
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		mode:       cfg.URLMode,
		endpoint:   endpoint,
		public:     public,
	}, nil
}

func endpointString(endpoint *url.URL, region string) string {
	if endpoint == nil {
		return "https://s3." + region + ".amazonaws.com"
	}
	return endpoint.String()
}

// Close releases idle pooled connections.
func (g *Gateway) Close() error {
	if c, ok := g.httpClient.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	var nsb *types.NoSuchBucket
	if errors.As(err, &nf) || errors.As(err, &nsk) || errors.As(err, &nsb) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

// EnsureBucket creates the bucket when it does not exist yet.
func (g *Gateway) EnsureBucket(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observe("ensure_bucket", start, err) }()

	_, err = g.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(g.bucket)})
	if err == nil {
		log.Debug("bucket %s exists", g.bucket)
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to check bucket %s: %w", g.bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(g.bucket)}
	if g.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(g.region),
		}
	}
	if _, err = g.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", g.bucket, err)
	}
	log.Info("bucket %s created", g.bucket)
	return nil
}

// Put uploads data under key.
func (g *Gateway) Put(ctx context.Context, key string, data []byte, contentType string) (err error) {
	if err = validateKey(key); err != nil {
		return err
	}
	start := time.Now()
	defer func() { observe("put", start, err) }()

	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	log.Debug("put %s (%d bytes, %s)", key, len(data), contentType)
	return nil
}

// Exists reports whether key is present.
func (g *Gateway) Exists(ctx context.Context, key string) (ok bool, err error) {
	if err = validateKey(key); err != nil {
		return false, err
	}
	start := time.Now()
	defer func() { observe("head", start, err) }()

	_, err = g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		err = nil
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", key, err)
}

// Delete removes key. Deleting a missing key is not an error.
func (g *Gateway) Delete(ctx context.Context, key string) (err error) {
	if err = validateKey(key); err != nil {
		return err
	}
	start := time.Now()
	defer func() { observe("delete", start, err) }()

	_, err = g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	log.Debug("deleted %s", key)
	return nil
}

// PresignedURL signs a GET for key valid for ttl (clamped to MaxPresignTTL)
// and rewrites it onto the public host when one is configured.
func (g *Gateway) PresignedURL(ctx context.Context, key string, ttl time.Duration) (u string, err error) {
	if err = validateKey(key); err != nil {
		return "", err
	}
	start := time.Now()
	defer func() { observe("presign", start, err) }()

	req, err := g.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(clampTTL(ttl)))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return RewriteHost(req.URL, g.public), nil
}

// PublicURL returns the stable path-style URL of key, on the public host
// when one is configured.
func (g *Gateway) PublicURL(key string) string {
	base := endpointString(g.endpoint, g.region)
	raw := strings.TrimSuffix(base, "/") + "/" + g.bucket + "/" + escapeKey(key)
	return RewriteHost(raw, g.public)
}

// ReferenceURL implements Store.
func (g *Gateway) ReferenceURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if g.mode == URLModePublic {
		if err := validateKey(key); err != nil {
			return "", err
		}
		return g.PublicURL(key), nil
	}
	return g.PresignedURL(ctx, key, ttl)
}

// KeyFromURL implements Store.
func (g *Gateway) KeyFromURL(rawURL string) (string, error) {
	return keyFromPath(rawURL, g.bucket)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
