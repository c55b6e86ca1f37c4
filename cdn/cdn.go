// Package cdn emits CloudFront invalidation batches for cached
// renditions.
package cdn

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/aws/aws-sdk-go/service/cloudfront/cloudfrontiface"
	"github.com/pkg/errors"
)

// Invalidation is the projection of a CloudFront invalidation record
// returned to admin callers.
type Invalidation struct {
	ID       string   `json:"id"`
	Location string   `json:"location"`
	Created  string   `json:"created"`
	Status   string   `json:"status"`
	Paths    []string `json:"paths"`
}

// Invalidator creates invalidations against one distribution.
type Invalidator struct {
	svc            cloudfrontiface.CloudFrontAPI
	distributionID string
}

// New makes an Invalidator for the distribution, using the ambient AWS
// credential chain.
func New(distributionID string) (*Invalidator, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create aws session")
	}
	return &Invalidator{
		svc:            cloudfront.New(sess),
		distributionID: distributionID,
	}, nil
}

// NewWithClient makes an Invalidator with an explicit CloudFront
// client, used by tests.
func NewWithClient(svc cloudfrontiface.CloudFrontAPI, distributionID string) *Invalidator {
	return &Invalidator{svc: svc, distributionID: distributionID}
}

// Invalidate submits one batch for the given CDN paths. The caller
// reference is the current unix timestamp.
func (i *Invalidator) Invalidate(ctx context.Context, paths []string) (*Invalidation, error) {
	if len(paths) == 0 {
		return nil, errors.New("no paths to invalidate")
	}
	out, err := i.svc.CreateInvalidationWithContext(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(i.distributionID),
		InvalidationBatch: &cloudfront.InvalidationBatch{
			CallerReference: aws.String(strconv.FormatInt(time.Now().Unix(), 10)),
			Paths: &cloudfront.Paths{
				Items:    aws.StringSlice(paths),
				Quantity: aws.Int64(int64(len(paths))),
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create invalidation")
	}
	return project(out)
}

func project(out *cloudfront.CreateInvalidationOutput) (*Invalidation, error) {
	if out == nil || out.Invalidation == nil {
		return nil, errors.New("error reading invalidation")
	}
	inv := out.Invalidation
	res := &Invalidation{
		ID:       aws.StringValue(inv.Id),
		Location: aws.StringValue(out.Location),
		Status:   aws.StringValue(inv.Status),
	}
	if inv.CreateTime != nil {
		res.Created = inv.CreateTime.UTC().Format(time.RFC3339)
	}
	if inv.InvalidationBatch != nil && inv.InvalidationBatch.Paths != nil {
		res.Paths = aws.StringValueSlice(inv.InvalidationBatch.Paths.Items)
	}
	return res, nil
}
