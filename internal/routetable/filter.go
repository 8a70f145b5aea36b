package routetable

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// MatchAll selects every route table in the VPC set.
const MatchAll = "ALL"

// Filter selects route tables by tag. The zero value matches all tables.
type Filter struct {
	Key      string
	Value    string
	HasValue bool
}

// ParseFilter parses a selector of the form "ALL", "key" or "key=value".
// An empty selector is treated as "ALL".
func ParseFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == MatchAll {
		return Filter{}, nil
	}

	key, value, hasValue := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if key == "" {
		return Filter{}, fmt.Errorf("routetable: invalid route table filter %q: empty tag key", s)
	}
	return Filter{
		Key:      key,
		Value:    strings.TrimSpace(value),
		HasValue: hasValue,
	}, nil
}

// MatchesAll reports whether f selects every route table.
func (f Filter) MatchesAll() bool {
	return f.Key == ""
}

// String returns the selector form accepted by ParseFilter.
func (f Filter) String() string {
	switch {
	case f.MatchesAll():
		return MatchAll
	case f.HasValue:
		return f.Key + "=" + f.Value
	default:
		return f.Key
	}
}

// EC2Filters returns the DescribeRouteTables filters for the given VPCs.
func (f Filter) EC2Filters(vpcIDs []string) []ec2types.Filter {
	filters := []ec2types.Filter{
		{Name: aws.String("vpc-id"), Values: vpcIDs},
	}
	switch {
	case f.MatchesAll():
	case f.HasValue:
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("tag:" + f.Key),
			Values: []string{f.Value},
		})
	default:
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("tag-key"),
			Values: []string{f.Key},
		})
	}
	return filters
}
