package v1

import (
	"github.com/shimmeringbee/irrigation/bridge"
	"github.com/stretchr/testify/mock"
)

var _ SnapshotProvider = (*MockSnapshotProvider)(nil)

type MockSnapshotProvider struct {
	mock.Mock
}

func (m *MockSnapshotProvider) Snapshot() bridge.Snapshot {
	args := m.Called()
	return args.Get(0).(bridge.Snapshot)
}
