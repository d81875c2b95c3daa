package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/3leaps/nimbusfs/pkg/provider"
	"github.com/3leaps/nimbusfs/test/memstore"
)

const allUsersURI = "http://acs.amazonaws.com/groups/global/AllUsers"

// fakeAPI implements API over a memstore.Store.
type fakeAPI struct {
	store  *memstore.Store
	bucket string

	mu           sync.Mutex
	uploads      map[string]map[int32][]byte
	deleteBatches []int
	parts        int
}

var _ API = (*fakeAPI)(nil)

func newFakeAPI(store *memstore.Store, bucket string) *fakeAPI {
	return &fakeAPI{store: store, bucket: bucket, uploads: make(map[string]map[int32][]byte)}
}

func (f *fakeAPI) checkBucket(bucket *string) error {
	if aws.ToString(bucket) != f.bucket {
		return &types.NoSuchBucket{Message: aws.String(aws.ToString(bucket))}
	}
	return nil
}

func notFound(err error, replacement error) error {
	if errors.Is(err, provider.ErrNotFound) {
		return replacement
	}
	return err
}

func (f *fakeAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	var data []byte
	if in.Body != nil {
		var err error
		if data, err = io.ReadAll(in.Body); err != nil {
			return nil, err
		}
	}
	obj, err := f.store.Put(memstore.Object{
		Key:         aws.ToString(in.Key),
		Data:        data,
		ContentType: aws.ToString(in.ContentType),
		Metadata:    in.Metadata,
		Public:      in.ACL == types.ObjectCannedACLPublicRead,
		Encrypted:   in.ServerSideEncryption == types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return nil, err
	}
	return &s3.PutObjectOutput{ETag: aws.String(obj.ETag)}, nil
}

func (f *fakeAPI) CreateMultipartUpload(_ context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("upload-%d", len(f.uploads)+1)
	f.uploads[id] = make(map[int32][]byte)
	return &s3.CreateMultipartUploadOutput{Bucket: in.Bucket, Key: in.Key, UploadId: aws.String(id)}, nil
}

func (f *fakeAPI) UploadPart(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	parts, ok := f.uploads[aws.ToString(in.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}
	parts[aws.ToInt32(in.PartNumber)] = data
	f.parts++
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf(`"part-%d"`, aws.ToInt32(in.PartNumber)))}, nil
}

func (f *fakeAPI) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	parts, ok := f.uploads[aws.ToString(in.UploadId)]
	delete(f.uploads, aws.ToString(in.UploadId))
	f.mu.Unlock()
	if !ok {
		return nil, &types.NoSuchUpload{}
	}

	numbers := make([]int, 0, len(parts))
	for n := range parts {
		numbers = append(numbers, int(n))
	}
	sort.Ints(numbers)
	var buf bytes.Buffer
	for _, n := range numbers {
		buf.Write(parts[int32(n)])
	}

	out, err := f.PutObject(ctx, &s3.PutObjectInput{Bucket: in.Bucket, Key: in.Key, Body: &buf})
	if err != nil {
		return nil, err
	}
	return &s3.CompleteMultipartUploadOutput{Bucket: in.Bucket, Key: in.Key, ETag: out.ETag}, nil
}

func (f *fakeAPI) AbortMultipartUpload(_ context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploads, aws.ToString(in.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	obj, err := f.store.Get(aws.ToString(in.Key))
	if err != nil {
		return nil, notFound(err, &types.NoSuchKey{})
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.Data)),
		ContentLength: aws.Int64(obj.Size()),
		ContentType:   aws.String(obj.ContentType),
		ETag:          aws.String(obj.ETag),
		LastModified:  aws.Time(obj.Modified),
	}, nil
}

func (f *fakeAPI) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	obj, err := f.store.Head(aws.ToString(in.Key))
	if err != nil {
		return nil, notFound(err, &types.NotFound{})
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(obj.Size()),
		ContentType:   aws.String(obj.ContentType),
		ETag:          aws.String(obj.ETag),
		LastModified:  aws.Time(obj.Modified),
		Metadata:      obj.Metadata,
	}, nil
}

func (f *fakeAPI) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	src, ok := strings.CutPrefix(aws.ToString(in.CopySource), f.bucket+"/")
	if !ok {
		return nil, &types.NoSuchBucket{}
	}
	src, err := url.PathUnescape(src)
	if err != nil {
		return nil, err
	}
	if _, err := f.store.Copy(src, aws.ToString(in.Key)); err != nil {
		return nil, notFound(err, &types.NoSuchKey{})
	}
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	if err := f.store.Delete(aws.ToString(in.Key)); err != nil {
		return nil, err
	}
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeAPI) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.deleteBatches = append(f.deleteBatches, len(in.Delete.Objects))
	f.mu.Unlock()

	out := &s3.DeleteObjectsOutput{}
	for _, id := range in.Delete.Objects {
		if err := f.store.Delete(aws.ToString(id.Key)); err != nil {
			out.Errors = append(out.Errors, types.Error{Key: id.Key, Code: aws.String("InternalError"), Message: aws.String(err.Error())})
		}
	}
	return out, nil
}

func (f *fakeAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	res, err := f.store.List(aws.ToString(in.Prefix), aws.ToString(in.Delimiter), aws.ToString(in.ContinuationToken), int(aws.ToInt32(in.MaxKeys)))
	if err != nil {
		return nil, err
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(res.Truncated)}
	if res.Truncated {
		out.NextContinuationToken = aws.String(res.NextMarker)
	}
	for _, obj := range res.Objects {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(obj.Key),
			Size:         aws.Int64(obj.Size()),
			ETag:         aws.String(obj.ETag),
			LastModified: aws.Time(obj.Modified),
		})
	}
	for _, p := range res.CommonPrefixes {
		out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(p)})
	}
	return out, nil
}

func (f *fakeAPI) GetObjectAcl(_ context.Context, in *s3.GetObjectAclInput, _ ...func(*s3.Options)) (*s3.GetObjectAclOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	public, err := f.store.ACL(aws.ToString(in.Key))
	if err != nil {
		return nil, notFound(err, &types.NoSuchKey{})
	}

	out := &s3.GetObjectAclOutput{
		Grants: []types.Grant{{
			Grantee:    &types.Grantee{Type: types.TypeCanonicalUser, ID: aws.String("owner")},
			Permission: types.PermissionFullControl,
		}},
	}
	if public {
		out.Grants = append(out.Grants, types.Grant{
			Grantee:    &types.Grantee{Type: types.TypeGroup, URI: aws.String(allUsersURI)},
			Permission: types.PermissionRead,
		})
	}
	return out, nil
}

func (f *fakeAPI) PutObjectAcl(_ context.Context, in *s3.PutObjectAclInput, _ ...func(*s3.Options)) (*s3.PutObjectAclOutput, error) {
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	if err := f.store.SetACL(aws.ToString(in.Key), in.ACL == types.ObjectCannedACLPublicRead); err != nil {
		return nil, notFound(err, &types.NoSuchKey{})
	}
	return &s3.PutObjectAclOutput{}, nil
}

// fakePresigner signs nothing; it builds a URL shaped like a SigV4 presign.
type fakePresigner struct {
	base string
}

func (p *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	q := url.Values{}
	q.Set("X-Amz-Expires", fmt.Sprintf("%d", int(opts.Expires.Seconds())))
	q.Set("X-Amz-Signature", "fakesignature")
	if in.ResponseContentDisposition != nil {
		q.Set("response-content-disposition", aws.ToString(in.ResponseContentDisposition))
	}

	u, err := url.Parse(p.base)
	if err != nil {
		return nil, err
	}
	u.Path += "/" + aws.ToString(in.Key)
	u.RawQuery = q.Encode()
	return &v4.PresignedHTTPRequest{URL: u.String(), Method: "GET"}, nil
}
