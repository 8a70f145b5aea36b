package discovery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/plexsphere/vipsync/internal/routetable"
)

// NewMetadataClient returns an instance metadata client using the default
// endpoint and IMDSv2 sessions.
func NewMetadataClient() *imds.Client {
	return imds.New(imds.Options{})
}

// AWSClients loads the default AWS credential chain for region and returns
// the discovery client plus a factory that gives each route table its own
// EC2 client.
func AWSClients(ctx context.Context, region string) (*Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("discovery: load AWS configuration: %w", err)
	}
	return &Clients{
		EC2:            ec2.NewFromConfig(cfg),
		NewTableClient: tableClientFactory(cfg),
	}, nil
}

func tableClientFactory(cfg aws.Config) routetable.ClientFactory {
	return func() (routetable.API, error) {
		return ec2.NewFromConfig(cfg), nil
	}
}
