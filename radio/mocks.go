package radio

import (
	"context"
	"github.com/shimmeringbee/irrigation/zone"
	"github.com/stretchr/testify/mock"
)

var _ Endpoint = (*MockEndpoint)(nil)

type MockEndpoint struct {
	mock.Mock
	Handler RequestHandler
}

func (m *MockEndpoint) OnRequest(h RequestHandler) {
	m.Handler = h
}

func (m *MockEndpoint) Reflect(ctx context.Context, on bool) error {
	args := m.Called(ctx, on)
	return args.Error(0)
}

func (m *MockEndpoint) ReportRemaining(ctx context.Context, remaining uint8) error {
	args := m.Called(ctx, remaining)
	return args.Error(0)
}

var _ Network = (*MockNetwork)(nil)

type MockNetwork struct {
	mock.Mock
}

func (m *MockNetwork) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockNetwork) Connected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockNetwork) Endpoint(i zone.Index) (Endpoint, bool) {
	args := m.Called(i)

	if ep, ok := args.Get(0).(Endpoint); ok {
		return ep, args.Bool(1)
	}

	return nil, args.Bool(1)
}

func (m *MockNetwork) Erase() error {
	args := m.Called()
	return args.Error(0)
}
