package testutil

import (
	"context"

	"github.com/dgellow/twitch-login/internal/browserauth"
	"github.com/stretchr/testify/mock"
)

type MockLauncher struct {
	mock.Mock
}

func (m *MockLauncher) Open(ctx context.Context) (browserauth.Flow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(browserauth.Flow), args.Error(1)
}

type MockFlow struct {
	mock.Mock
}

func (m *MockFlow) RedirectURI() string {
	args := m.Called()
	return args.String(0)
}

// Run returns the first mocked value. It may be a *browserauth.Result or a
// func(authURL string) *browserauth.Result, the latter so a test can echo the
// state from the authorization URL.
func (m *MockFlow) Run(ctx context.Context, authURL string) (*browserauth.Result, error) {
	args := m.Called(ctx, authURL)
	switch v := args.Get(0).(type) {
	case func(string) *browserauth.Result:
		return v(authURL), args.Error(1)
	case *browserauth.Result:
		return v, args.Error(1)
	default:
		return nil, args.Error(1)
	}
}

func (m *MockFlow) Close() error {
	args := m.Called()
	return args.Error(0)
}
