package hostroute

import (
	"net/netip"
	"sync"
)

// mockCall records a single method invocation on mockRouteController.
type mockCall struct {
	Method string
	Args   []interface{}
}

// mockRouteController is a test double for RouteController.
// It records all calls and supports per-destination error injection.
type mockRouteController struct {
	mu sync.Mutex

	calls []mockCall

	addErr    error
	addErrFor map[string]error
}

func (m *mockRouteController) AddOnlinkRoute(dst netip.Prefix, gw netip.Addr, iface string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockCall{Method: "AddOnlinkRoute", Args: []interface{}{dst.String(), gw.String(), iface}})
	if e, ok := m.addErrFor[dst.String()]; ok {
		return e
	}
	return m.addErr
}

func (m *mockRouteController) getCalls() []mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockCall, len(m.calls))
	copy(out, m.calls)
	return out
}
