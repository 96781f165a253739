// Package s3 stores constructs as JSON objects in an S3-compatible bucket
// (AWS S3 or MinIO).
//
// Keys are laid out as <prefix>/<type>/<id>.json so List is a prefix
// listing. Updates are conditional PUTs on the object's ETag, which gives
// the same compare-and-swap guarantee the SQL backends get from their
// version column.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/store"
)

const maxBlindUpdateAttempts = 16

// objectAPI is the subset of *s3.Client the store uses.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config holds connection parameters. Empty credentials fall back to the
// default AWS credentials chain.
type Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // optional, enables a custom endpoint such as MinIO
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// Store is an object-storage backed store.Store.
type Store struct {
	id     string
	api    objectAPI
	bucket string
	prefix string
	opts   store.Options

	// types remembers the type of ids seen so Read can go straight to the
	// right key.
	types sync.Map
}

var _ store.Store = (*Store)(nil)

// New creates a store named id from cfg.
func New(ctx context.Context, id string, cfg Config, opts ...store.Option) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newWithAPI(client, id, cfg.Bucket, cfg.Prefix, opts...), nil
}

func newWithAPI(api objectAPI, id, bucket, prefix string, opts ...store.Option) *Store {
	return &Store{
		id:     id,
		api:    api,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		opts:   store.ResolveOptions(opts...),
	}
}

// ID returns the store identifier.
func (s *Store) ID() string { return s.id }

func (s *Store) typePrefix(t construct.Type) string {
	if s.prefix == "" {
		return string(t) + "/"
	}
	return path.Join(s.prefix, string(t)) + "/"
}

func (s *Store) key(t construct.Type, id string) string {
	return s.typePrefix(t) + id + ".json"
}

// Create writes a new object. The write is conditional on the key not
// existing yet.
func (s *Store) Create(ctx context.Context, t construct.Type, data construct.Data, opts store.CreateOptions) (*construct.Construct, error) {
	c, err := store.NewConstruct(s.id, s.opts.IDs.NewID(), t, data, opts, s.opts.Clock)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", t, err)
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(t, c.ID())),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", t, err)
	}
	s.types.Store(c.ID(), t)
	return c, nil
}

// Read tries the remembered type first, then every type prefix.
func (s *Store) Read(ctx context.Context, id string) (*construct.Construct, error) {
	c, _, err := s.read(ctx, id)
	return c, err
}

func (s *Store) read(ctx context.Context, id string) (*construct.Construct, string, error) {
	candidates := construct.Types
	if t, ok := s.types.Load(id); ok {
		candidates = append([]construct.Type{t.(construct.Type)}, construct.Types...)
	}
	for _, t := range candidates {
		c, etag, err := s.get(ctx, s.key(t, id))
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", id, err)
		}
		if c != nil {
			s.types.Store(id, t)
			return c, etag, nil
		}
	}
	s.types.Delete(id)
	return nil, "", nil
}

// get fetches and decodes one object. A missing key is (nil, "", nil).
func (s *Store) get(ctx context.Context, key string) (*construct.Construct, string, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if isStatus(err, http.StatusNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", err
	}
	var c construct.Construct
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", key, err)
	}
	c.Signature.StoreID = s.id
	return &c, aws.ToString(out.ETag), nil
}

// Update rewrites the object with an If-Match on the ETag that was read.
func (s *Store) Update(ctx context.Context, id string, data construct.Data, opts store.UpdateOptions) (*construct.Construct, error) {
	for attempt := 0; attempt < maxBlindUpdateAttempts; attempt++ {
		current, etag, err := s.read(ctx, id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, store.ErrNotFound
		}
		if data == nil || data.Kind() != current.Type {
			return nil, store.NewPayloadMismatch(current.Type, data)
		}
		if err := store.CheckVersion(current.Signature.Version, opts); err != nil {
			return nil, err
		}

		next := store.ApplyUpdate(current, data, opts, s.opts.Clock)
		body, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", id, err)
		}
		_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.key(current.Type, id)),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("application/json"),
			IfMatch:     aws.String(etag),
		})
		if err == nil {
			return next, nil
		}
		if !isStatus(err, http.StatusPreconditionFailed) {
			return nil, fmt.Errorf("update %s: %w", id, err)
		}
		if opts.IfVersion != 0 {
			return nil, store.ErrVersionConflict
		}
	}
	return nil, fmt.Errorf("update %s: %w", id, store.ErrVersionConflict)
}

// Delete removes the object if it exists.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	current, _, err := s.read(ctx, id)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, nil
	}
	_, err = s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(current.Type, id)),
	})
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", id, err)
	}
	s.types.Delete(id)
	return true, nil
}

// List reads every object under the type prefix. Order is CreatedAt, ties
// broken by id.
func (s *Store) List(ctx context.Context, t construct.Type) ([]*construct.Construct, error) {
	prefix := s.typePrefix(t)
	var keys []string
	var token *string
	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", t, err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}

	result := []*construct.Construct{}
	for _, key := range keys {
		c, _, err := s.get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", t, err)
		}
		// deleted between listing and fetch
		if c == nil {
			continue
		}
		s.types.Store(c.ID(), t)
		result = append(result, c)
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.Metadata.CreatedAt.Equal(b.Metadata.CreatedAt) {
			return a.Metadata.CreatedAt.Before(b.Metadata.CreatedAt)
		}
		return a.ID() < b.ID()
	})
	return result, nil
}

// Search lists the requested type (or all types) and filters by name.
func (s *Store) Search(ctx context.Context, q store.Query) ([]*construct.Construct, error) {
	types := construct.Types
	if q.Type != "" {
		types = []construct.Type{q.Type}
	}
	out := []*construct.Construct{}
	for _, t := range types {
		cs, err := s.List(ctx, t)
		if err != nil {
			return nil, err
		}
		for _, c := range cs {
			if q.Matches(c) {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

// isStatus reports whether err carries the given HTTP status from the
// service response.
func isStatus(err error, code int) bool {
	if err == nil {
		return false
	}
	var re interface{ HTTPStatusCode() int }
	if errors.As(err, &re) {
		return re.HTTPStatusCode() == code
	}
	return false
}
