package s3

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

// allUsersGroup identifies the anonymous principal in grantee URIs.
const allUsersGroup = "global/AllUsers"

// Visibility is public when the object ACL grants READ to all users.
func (a *Adapter) Visibility(ctx context.Context, path string) (provider.Visibility, bool) {
	key := a.codec.ApplyPrefix(path)
	out, err := a.api.GetObjectAcl(ctx, &s3.GetObjectAclInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		a.fail("Visibility", key, err)
		return "", false
	}
	return visibilityFromGrants(out.Grants), true
}

// SetVisibility applies the canned ACL for v.
func (a *Adapter) SetVisibility(ctx context.Context, path string, v provider.Visibility) bool {
	key := a.codec.ApplyPrefix(path)
	_, err := a.api.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		ACL:    cannedACL(v),
	})
	if err != nil {
		a.fail("SetVisibility", key, err)
		return false
	}
	return true
}

func visibilityFromGrants(grants []types.Grant) provider.Visibility {
	for _, g := range grants {
		if g.Grantee == nil || g.Permission != types.PermissionRead {
			continue
		}
		if strings.Contains(aws.ToString(g.Grantee.URI), allUsersGroup) {
			return provider.VisibilityPublic
		}
	}
	return provider.VisibilityPrivate
}

func cannedACL(v provider.Visibility) types.ObjectCannedACL {
	if v == provider.VisibilityPublic {
		return types.ObjectCannedACLPublicRead
	}
	return types.ObjectCannedACLPrivate
}
