package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/3leaps/nimbusfs/pkg/listing"
	"github.com/3leaps/nimbusfs/pkg/provider"
)

// ListDirectory returns every entry under prefix. Recursive listings omit
// the delimiter and enumerate keys flat.
func (a *Adapter) ListDirectory(ctx context.Context, prefix string, recursive bool) ([]provider.ObjectRecord, error) {
	dir := a.codec.ListPrefix(prefix)
	recs, err := a.lister.List(ctx, dir, recursive)
	if err != nil {
		return nil, a.wrapError("ListDirectory", dir, err)
	}
	return recs, nil
}

// ListPage fetches one ListObjectsV2 page. The listing marker is the
// continuation token.
func (a *Adapter) ListPage(ctx context.Context, req listing.Request) (*listing.Page, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(a.bucket),
		MaxKeys: aws.Int32(int32(req.MaxKeys)),
	}
	if req.Prefix != "" {
		input.Prefix = aws.String(req.Prefix)
	}
	if req.Delimiter != "" {
		input.Delimiter = aws.String(req.Delimiter)
	}
	if req.Marker != "" {
		input.ContinuationToken = aws.String(req.Marker)
	}

	out, err := a.api.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, err
	}

	page := &listing.Page{
		Entries:        make([]provider.RawEntry, 0, len(out.Contents)),
		CommonPrefixes: make([]string, 0, len(out.CommonPrefixes)),
		NextMarker:     aws.ToString(out.NextContinuationToken),
		Truncated:      aws.ToBool(out.IsTruncated),
	}
	for _, obj := range out.Contents {
		page.Entries = append(page.Entries, provider.RawEntry{
			Key:          aws.ToString(obj.Key),
			Size:         obj.Size,
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         aws.ToString(obj.ETag),
		})
	}
	for _, cp := range out.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	return page, nil
}
