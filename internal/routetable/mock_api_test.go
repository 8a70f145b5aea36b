package routetable

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

// mockCall records a single method invocation on mockTable.
type mockCall struct {
	Method string
	Table  string
	CIDR   string
	ENI    string
}

// mockTable is a test double for API that keeps an in-memory route table.
// Routes map destination CIDR to the target ENI.
type mockTable struct {
	mu     sync.Mutex
	calls  []mockCall
	routes map[string]string

	replaceErr error
	createErr  error

	// block makes every call wait until ctx is done.
	block bool

	// hang makes ReplaceRoute wait until the channel is closed, ignoring ctx.
	hang chan struct{}
}

func newMockTable() *mockTable {
	return &mockTable{routes: make(map[string]string)}
}

func notFoundErr() error {
	return &smithy.GenericAPIError{Code: errCodeRouteNotFound, Message: "no route with destination-cidr-block"}
}

func (m *mockTable) ReplaceRoute(ctx context.Context, in *ec2.ReplaceRouteInput, _ ...func(*ec2.Options)) (*ec2.ReplaceRouteOutput, error) {
	m.mu.Lock()
	m.calls = append(m.calls, mockCall{
		Method: "ReplaceRoute",
		Table:  aws.ToString(in.RouteTableId),
		CIDR:   aws.ToString(in.DestinationCidrBlock),
		ENI:    aws.ToString(in.NetworkInterfaceId),
	})
	block, hang := m.block, m.hang
	m.mu.Unlock()

	if hang != nil {
		<-hang
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return nil, m.replaceErr
	}
	cidr := aws.ToString(in.DestinationCidrBlock)
	if _, ok := m.routes[cidr]; !ok {
		return nil, notFoundErr()
	}
	m.routes[cidr] = aws.ToString(in.NetworkInterfaceId)
	return &ec2.ReplaceRouteOutput{}, nil
}

func (m *mockTable) CreateRoute(_ context.Context, in *ec2.CreateRouteInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockCall{
		Method: "CreateRoute",
		Table:  aws.ToString(in.RouteTableId),
		CIDR:   aws.ToString(in.DestinationCidrBlock),
		ENI:    aws.ToString(in.NetworkInterfaceId),
	})
	if m.createErr != nil {
		return nil, m.createErr
	}
	cidr := aws.ToString(in.DestinationCidrBlock)
	if _, ok := m.routes[cidr]; ok {
		return nil, &smithy.GenericAPIError{Code: "RouteAlreadyExists"}
	}
	m.routes[cidr] = aws.ToString(in.NetworkInterfaceId)
	return &ec2.CreateRouteOutput{Return: aws.Bool(true)}, nil
}

// hangUntilCleanup makes m ignore ctx in ReplaceRoute until the test ends, so
// abandoned workers exit before goroutine leak checks run.
func hangUntilCleanup(t *testing.T, m *mockTable) {
	t.Helper()
	hang := make(chan struct{})
	m.mu.Lock()
	m.hang = hang
	m.mu.Unlock()
	t.Cleanup(func() { close(hang) })
}

func (m *mockTable) callsFor(method string) []mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []mockCall
	for _, c := range m.calls {
		if c.Method == method {
			result = append(result, c)
		}
	}
	return result
}

func (m *mockTable) route(cidr string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	eni, ok := m.routes[cidr]
	return eni, ok
}

// Verify mockTable satisfies API at compile time.
var _ API = (*mockTable)(nil)

// mockLister serves DescribeRouteTables from fixed pages.
type mockLister struct {
	mu         sync.Mutex
	pages      [][]string
	err        error
	lastInput  *ec2.DescribeRouteTablesInput
	callsCount int
}

func (m *mockLister) DescribeRouteTables(_ context.Context, in *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callsCount++
	m.lastInput = in
	if m.err != nil {
		return nil, m.err
	}

	page := 0
	if in.NextToken != nil {
		for i := range m.pages {
			if *in.NextToken == pageToken(i) {
				page = i
			}
		}
	}

	out := &ec2.DescribeRouteTablesOutput{}
	if page < len(m.pages) {
		for _, id := range m.pages[page] {
			out.RouteTables = append(out.RouteTables, ec2types.RouteTable{RouteTableId: aws.String(id)})
		}
	}
	if page+1 < len(m.pages) {
		out.NextToken = aws.String(pageToken(page + 1))
	}
	return out, nil
}

func pageToken(i int) string {
	return "page-" + string(rune('0'+i))
}
