package reconcile

import (
	"context"
	"errors"
	"net/netip"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"

	"github.com/plexsphere/vipsync/internal/cidr"
	"github.com/plexsphere/vipsync/internal/discovery"
	"github.com/plexsphere/vipsync/internal/ifstate"
	"github.com/plexsphere/vipsync/internal/routetable"
)

// mockBootstrapper fails the first failures calls, then returns state.
type mockBootstrapper struct {
	mu       sync.Mutex
	calls    int
	failures int
	state    *discovery.State
	panicOn  int
}

func (m *mockBootstrapper) Discover(_ context.Context) (*discovery.State, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()
	if m.panicOn == n {
		panic("metadata exploded")
	}
	if n <= m.failures {
		return nil, errors.New("metadata service unreachable")
	}
	return m.state, nil
}

func (m *mockBootstrapper) getCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockSampler returns a fixed observation, or the result of sampleFunc.
type mockSampler struct {
	mu         sync.Mutex
	calls      int
	obs        ifstate.Observation
	sampleFunc func(call int) (ifstate.Observation, error)
}

func (m *mockSampler) Sample(_ context.Context) (ifstate.Observation, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	fn := m.sampleFunc
	obs := m.obs
	m.mu.Unlock()
	if fn != nil {
		return fn(n)
	}
	return obs.Clone(), nil
}

func (m *mockSampler) set(obs ifstate.Observation) {
	m.mu.Lock()
	m.obs = obs
	m.mu.Unlock()
}

func (m *mockSampler) getCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// installCall records one RouteInstaller.Install invocation.
type installCall struct {
	ENI string
	Dst netip.Prefix
}

// mockInstaller records Install calls without touching any pool.
type mockInstaller struct {
	mu    sync.Mutex
	calls []installCall
}

func (m *mockInstaller) Install(_ context.Context, pool *routetable.Pool, eniID string, dst netip.Prefix) routetable.InstallResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, installCall{ENI: eniID, Dst: dst})
	return routetable.InstallResult{Replaced: pool.IDs()}
}

func (m *mockInstaller) getCalls() []installCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]installCall(nil), m.calls...)
}

// peerCall records one PeerRouter.InstallOnce invocation.
type peerCall struct {
	MAC, DeviceIndex, Device string
	Subnet                   netip.Prefix
}

// mockPeers implements PeerRouter with one-shot gating per MAC.
type mockPeers struct {
	mu    sync.Mutex
	calls []peerCall
	done  map[string]bool
}

func (m *mockPeers) InstallOnce(mac, deviceIndex string, subnet netip.Prefix, device string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, peerCall{MAC: mac, DeviceIndex: deviceIndex, Device: device, Subnet: subnet})
	if m.done == nil {
		m.done = make(map[string]bool)
	}
	if m.done[mac] {
		return false
	}
	m.done[mac] = true
	return true
}

func (m *mockPeers) getCalls() []peerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]peerCall(nil), m.calls...)
}

// mockTableAPI is a routetable.API with an in-memory route set.
type mockTableAPI struct {
	mu       sync.Mutex
	routes   map[string]string
	replaces int
	creates  int
	err      error
}

func newMockTableAPI() *mockTableAPI {
	return &mockTableAPI{routes: make(map[string]string)}
}

func (m *mockTableAPI) ReplaceRoute(_ context.Context, in *ec2.ReplaceRouteInput, _ ...func(*ec2.Options)) (*ec2.ReplaceRouteOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaces++
	if m.err != nil {
		return nil, m.err
	}
	dst := aws.ToString(in.DestinationCidrBlock)
	if _, ok := m.routes[dst]; !ok {
		return nil, &smithy.GenericAPIError{Code: "InvalidRoute.NotFound"}
	}
	m.routes[dst] = aws.ToString(in.NetworkInterfaceId)
	return &ec2.ReplaceRouteOutput{}, nil
}

func (m *mockTableAPI) CreateRoute(_ context.Context, in *ec2.CreateRouteInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.err != nil {
		return nil, m.err
	}
	m.routes[aws.ToString(in.DestinationCidrBlock)] = aws.ToString(in.NetworkInterfaceId)
	return &ec2.CreateRouteOutput{}, nil
}

func (m *mockTableAPI) counts() (replaces, creates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaces, m.creates
}

func (m *mockTableAPI) route(dst string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.routes[dst]
}

const (
	testMAC = "aa:bb:cc:dd:ee:ff"
	testENI = "eni-0abc"
)

// testState returns a bootstrap state with one interface (testMAC, device
// index "1", subnet 192.168.1.4/30) and the given route tables.
func testState(subnetAware bool, tables map[string]routetable.API, subnets ...string) *discovery.State {
	pool := routetable.NewPool()
	for _, id := range sortedKeys(tables) {
		pool.Add(id, tables[id])
	}
	catalog := cidr.NewCatalog()
	for i, s := range subnets {
		catalog.Add(netip.MustParsePrefix(s), "subnet-"+string(rune('a'+i)))
	}
	return &discovery.State{
		Identity: &discovery.Identity{
			InstanceID: "i-0123456789abcdef0",
			Region:     "eu-west-1",
			Interfaces: map[string]discovery.InterfaceInfo{
				testMAC: {
					MAC:         testMAC,
					ENIID:       testENI,
					VPCID:       "vpc-1",
					Subnet:      netip.MustParsePrefix("192.168.1.4/30"),
					DeviceIndex: "1",
				},
			},
		},
		Pool:     pool,
		Resolver: cidr.NewResolver(catalog, subnetAware),
	}
}

func sortedKeys(m map[string]routetable.API) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func observation(mac, device string, addrs ...string) ifstate.Observation {
	iface := ifstate.Interface{MAC: mac, Device: device}
	for _, a := range addrs {
		iface.Addrs = append(iface.Addrs, netip.MustParsePrefix(a))
	}
	return ifstate.NewObservation(iface)
}
