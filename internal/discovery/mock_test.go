package discovery

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/plexsphere/vipsync/internal/routetable"
)

// fakeMetadata serves metadata values from a map keyed by path.
type fakeMetadata struct {
	mu         sync.Mutex
	instanceID string
	region     string
	docErr     error
	values     map[string]string
	calls      int
}

func (f *fakeMetadata) GetInstanceIdentityDocument(_ context.Context, _ *imds.GetInstanceIdentityDocumentInput, _ ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.docErr != nil {
		return nil, f.docErr
	}
	out := &imds.GetInstanceIdentityDocumentOutput{}
	out.InstanceID = f.instanceID
	out.Region = f.region
	return out, nil
}

func (f *fakeMetadata) GetMetadata(_ context.Context, in *imds.GetMetadataInput, _ ...func(*imds.Options)) (*imds.GetMetadataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	v, ok := f.values[in.Path]
	if !ok {
		return nil, errors.New("404 not found: " + in.Path)
	}
	return &imds.GetMetadataOutput{Content: io.NopCloser(strings.NewReader(v))}, nil
}

// standardMetadata describes an instance with two interfaces in one VPC.
func standardMetadata() *fakeMetadata {
	return &fakeMetadata{
		instanceID: "i-0123456789abcdef0",
		region:     "eu-west-1",
		values: map[string]string{
			"network/interfaces/macs/":                                         "0a:00:00:00:00:01/\naa:bb:cc:dd:ee:ff/\n",
			"network/interfaces/macs/0a:00:00:00:00:01/interface-id":           "eni-primary",
			"network/interfaces/macs/0a:00:00:00:00:01/vpc-id":                 "vpc-1",
			"network/interfaces/macs/0a:00:00:00:00:01/device-number":          "0",
			"network/interfaces/macs/0a:00:00:00:00:01/subnet-ipv4-cidr-block": "10.0.0.0/24",
			"network/interfaces/macs/aa:bb:cc:dd:ee:ff/interface-id":           "eni-secondary",
			"network/interfaces/macs/aa:bb:cc:dd:ee:ff/vpc-id":                 "vpc-1",
			"network/interfaces/macs/aa:bb:cc:dd:ee:ff/device-number":          "1",
			"network/interfaces/macs/aa:bb:cc:dd:ee:ff/subnet-ipv4-cidr-block": "192.168.1.4/30",
		},
	}
}

// fakeEC2 serves DescribeRouteTables and DescribeSubnets from fixed data.
type fakeEC2 struct {
	mu sync.Mutex

	tables    []string
	subnets   map[string]string // CIDR -> subnet ID, returned in subnetOrder
	subnetOrd []string

	tablesErr  error
	subnetsErr error

	subnetCalls int
	lastTables  *ec2.DescribeRouteTablesInput
}

func (f *fakeEC2) DescribeRouteTables(_ context.Context, in *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTables = in
	if f.tablesErr != nil {
		return nil, f.tablesErr
	}
	out := &ec2.DescribeRouteTablesOutput{}
	for _, id := range f.tables {
		out.RouteTables = append(out.RouteTables, ec2types.RouteTable{RouteTableId: aws.String(id)})
	}
	return out, nil
}

func (f *fakeEC2) DescribeSubnets(_ context.Context, _ *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subnetCalls++
	if f.subnetsErr != nil {
		return nil, f.subnetsErr
	}
	out := &ec2.DescribeSubnetsOutput{}
	for _, c := range f.subnetOrd {
		out.Subnets = append(out.Subnets, ec2types.Subnet{
			CidrBlock: aws.String(c),
			SubnetId:  aws.String(f.subnets[c]),
		})
	}
	return out, nil
}

type nopTableClient struct{}

func (nopTableClient) ReplaceRoute(context.Context, *ec2.ReplaceRouteInput, ...func(*ec2.Options)) (*ec2.ReplaceRouteOutput, error) {
	return &ec2.ReplaceRouteOutput{}, nil
}

func (nopTableClient) CreateRoute(context.Context, *ec2.CreateRouteInput, ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error) {
	return &ec2.CreateRouteOutput{}, nil
}

// staticClients returns a ClientsFactory handing out client and recording
// the requested region.
func staticClients(client EC2API, region *string) ClientsFactory {
	return func(_ context.Context, r string) (*Clients, error) {
		if region != nil {
			*region = r
		}
		return &Clients{
			EC2: client,
			NewTableClient: func() (routetable.API, error) {
				return nopTableClient{}, nil
			},
		}, nil
	}
}
