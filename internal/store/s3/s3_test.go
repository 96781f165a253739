package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/store"
	"github.com/roach88/catgraph/internal/store/storetest"
)

type statusError struct{ code int }

func (e *statusError) Error() string       { return fmt.Sprintf("http %d", e.code) }
func (e *statusError) HTTPStatusCode() int { return e.code }

type fakeObject struct {
	body []byte
	etag string
}

// fakeBucket is an in-memory objectAPI with conditional-write semantics.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	n       int
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: make(map[string]fakeObject)}
}

func (f *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &statusError{code: http.StatusNotFound}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(obj.body)),
		ETag: aws.String(obj.etag),
	}, nil
}

func (f *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	existing, exists := f.objects[key]
	if aws.ToString(in.IfNoneMatch) == "*" && exists {
		return nil, &statusError{code: http.StatusPreconditionFailed}
	}
	if in.IfMatch != nil && (!exists || existing.etag != aws.ToString(in.IfMatch)) {
		return nil, &statusError{code: http.StatusPreconditionFailed}
	}
	f.n++
	etag := fmt.Sprintf("\"etag-%d\"", f.n)
	f.objects[key] = fakeObject{body: body, etag: etag}
	return &s3.PutObjectOutput{ETag: aws.String(etag)}, nil
}

func (f *fakeBucket) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

// ListObjectsV2 pages two keys at a time to exercise continuation.
func (f *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		fmt.Sscanf(aws.ToString(in.ContinuationToken), "%d", &start)
	}
	end := min(start+2, len(keys))
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(fmt.Sprintf("%d", end))
	}
	return out, nil
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return newWithAPI(newFakeBucket(), "s3-test", "bucket", "graphs")
	})
}

func TestKeyLayout(t *testing.T) {
	bucket := newFakeBucket()
	s := newWithAPI(bucket, "s3", "bucket", "/graphs/")
	c, err := s.Create(context.Background(), construct.TypeMorphism, nil, store.CreateOptions{})
	require.NoError(t, err)

	_, ok := bucket.objects["graphs/morphism/"+c.ID()+".json"]
	assert.True(t, ok)

	bare := newWithAPI(newFakeBucket(), "s3", "bucket", "")
	assert.Equal(t, "object/x.json", bare.key(construct.TypeObject, "x"))
}

func TestRead_FindsConstructWithoutTypeHint(t *testing.T) {
	bucket := newFakeBucket()
	writer := newWithAPI(bucket, "s3", "bucket", "p")
	c, err := writer.Create(context.Background(), construct.TypeFunctor, nil, store.CreateOptions{Name: "F"})
	require.NoError(t, err)

	// a second handle on the same bucket has no cached types
	reader := newWithAPI(bucket, "s3", "bucket", "p")
	got, err := reader.Read(context.Background(), c.ID())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, construct.TypeFunctor, got.Type)
	assert.Equal(t, "F", got.Metadata.Name)
}

func TestUpdate_StaleETagIsConflict(t *testing.T) {
	bucket := newFakeBucket()
	s := newWithAPI(bucket, "s3", "bucket", "p")
	ctx := context.Background()
	c, err := s.Create(ctx, construct.TypeCategory, nil, store.CreateOptions{})
	require.NoError(t, err)

	// A second writer bumps the object behind our back.
	other := newWithAPI(bucket, "s3", "bucket", "p")
	_, err = other.Update(ctx, c.ID(), c.Data, store.UpdateOptions{})
	require.NoError(t, err)

	_, err = s.Update(ctx, c.ID(), c.Data, store.UpdateOptions{IfVersion: 1})
	assert.ErrorIs(t, err, store.ErrVersionConflict)
}

func TestIsStatus(t *testing.T) {
	assert.False(t, isStatus(nil, 404))
	assert.True(t, isStatus(fmt.Errorf("wrapped: %w", &statusError{code: 404}), 404))
	assert.False(t, isStatus(fmt.Errorf("plain"), 404))
}
