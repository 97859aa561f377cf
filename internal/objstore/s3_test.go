package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
	types   map[string]string

	getErr        error
	deleteErr     error
	deleteManyErr error
	deleteOutErrs []types.Error
	headErr       error
	headObjectErr error
	pageSize      int

	deleteBatches [][]string
	listCalls     int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]string{}, types: map[string]string{}, pageSize: 2}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, _ := io.ReadAll(in.Body)
	f.objects[*in.Key] = string(b)
	f.types[*in.Key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(strings.NewReader(v)),
		ContentType: aws.String(f.types[*in.Key]),
	}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headObjectErr != nil {
		return nil, f.headObjectErr
	}
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &types.NotFound{Message: aws.String("missing")}
	}
	return &s3.HeadObjectOutput{ContentType: aws.String(f.types[*in.Key])}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listCalls++
	var all []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			all = append(all, k)
		}
	}
	sort.Strings(all)

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	end := min(start+f.pageSize, len(all))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(all))}
	for _, k := range all[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(all) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if f.deleteManyErr != nil {
		return nil, f.deleteManyErr
	}
	var batch []string
	for _, id := range in.Delete.Objects {
		batch = append(batch, *id.Key)
		delete(f.objects, *id.Key)
	}
	f.deleteBatches = append(f.deleteBatches, batch)
	return &s3.DeleteObjectsOutput{Errors: f.deleteOutErrs}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func TestNewS3Gateway_AppliesOptions(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-central-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		creds, err := lo.Credentials.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "minioadmin", creds.AccessKeyID)
		return aws.Config{}, nil
	}

	var opts s3.Options
	fake := newFakeS3()
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		for _, fn := range optFns {
			fn(&opts)
		}
		return fake
	}

	g, err := NewS3Gateway(context.Background(), S3Config{
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		Region:       "eu-central-1",
		BaseEndpoint: "http://127.0.0.1:9000",
		PathStyle:    true,
	})
	require.NoError(t, err)
	assert.Same(t, fake, g.client)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)

	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	_, err = NewS3Gateway(context.Background(), S3Config{})
	assert.ErrorContains(t, err, "load-fail")
}

func TestS3Gateway_PutGet(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	g := &S3Gateway{client: fake}

	require.NoError(t, g.Put(ctx, "b", "k", []byte("body"), "image/png"))

	obj, err := g.GetWithMetadata(ctx, "b", "k")
	require.NoError(t, err)
	assert.Equal(t, "body", string(obj.Data))
	assert.Equal(t, "image/png", obj.ContentType)

	_, err = g.Get(ctx, "b", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Gateway_GetDistinguishesNotFound(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{"no such key", &types.NoSuchKey{}, true},
		{"api not found", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"api no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"network", errors.New("dial tcp: connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeS3()
			fake.getErr = tt.err
			g := &S3Gateway{client: fake}

			_, err := g.Get(ctx, "b", "k")
			require.Error(t, err)
			assert.Equal(t, tt.notFound, errors.Is(err, ErrNotFound))
		})
	}
}

func TestS3Gateway_Exists(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.objects["k"] = "body"
	g := &S3Gateway{client: fake}

	ok, err := g.Exists(ctx, "b", "k")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Exists(ctx, "b", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	fake.headObjectErr = &smithy.GenericAPIError{Code: "AccessDenied"}
	_, err = g.Exists(ctx, "b", "k")
	assert.ErrorContains(t, err, "head object k")
}

func TestS3Gateway_ListPaginates(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	for _, k := range []string{"k_1x1", "k_2x2", "k_3x3", "k_4x4", "k_5x5", "other"} {
		fake.objects[k] = k
	}
	g := &S3Gateway{client: fake}

	keys, err := g.List(ctx, "b", "k_")
	require.NoError(t, err)
	assert.Equal(t, []string{"k_1x1", "k_2x2", "k_3x3", "k_4x4", "k_5x5"}, keys)
	assert.Equal(t, 3, fake.listCalls)
}

func TestS3Gateway_DeleteManyChunks(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	g := &S3Gateway{client: fake}

	keys := make([]string, 2500)
	for i := range keys {
		keys[i] = fmt.Sprintf("k_%d", i)
	}
	require.NoError(t, g.DeleteMany(ctx, "b", keys))
	require.Len(t, fake.deleteBatches, 3)
	assert.Len(t, fake.deleteBatches[0], 1000)
	assert.Len(t, fake.deleteBatches[1], 1000)
	assert.Len(t, fake.deleteBatches[2], 500)
}

func TestS3Gateway_DeleteManyReportsFailures(t *testing.T) {
	ctx := context.Background()

	fake := newFakeS3()
	fake.deleteManyErr = &smithy.GenericAPIError{Code: "InvalidRequest", Message: "Missing required header for this request: Content-MD5"}
	g := &S3Gateway{client: fake}
	assert.Error(t, g.DeleteMany(ctx, "b", []string{"a"}))

	fake = newFakeS3()
	fake.deleteOutErrs = []types.Error{{Key: aws.String("a"), Code: aws.String("AccessDenied")}}
	g = &S3Gateway{client: fake}
	err := g.DeleteMany(ctx, "b", []string{"a"})
	assert.ErrorContains(t, err, "AccessDenied")
}

func TestS3Gateway_DeleteIgnoresNotFound(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.deleteErr = &types.NoSuchKey{}
	g := &S3Gateway{client: fake}
	assert.NoError(t, g.Delete(ctx, "b", "k"))

	fake.deleteErr = errors.New("boom")
	assert.Error(t, g.Delete(ctx, "b", "k"))
}

func TestS3Gateway_Ping(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	g := &S3Gateway{client: fake}
	assert.NoError(t, g.Ping(ctx, "b"))

	fake.headErr = errors.New("no route to host")
	assert.ErrorContains(t, g.Ping(ctx, "b"), "no route to host")
}
