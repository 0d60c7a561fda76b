package valve

import (
	"context"
	"github.com/stretchr/testify/mock"
)

var _ Driver = (*MockDriver)(nil)

type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) Start(ctx context.Context, zone uint8, minutes uint) ErrorCode {
	args := m.Called(ctx, zone, minutes)
	return args.Get(0).(ErrorCode)
}

func (m *MockDriver) Stop(ctx context.Context, zone uint8) ErrorCode {
	args := m.Called(ctx, zone)
	return args.Get(0).(ErrorCode)
}
