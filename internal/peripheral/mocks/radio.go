// Package mocks holds testify doubles of the peripheral radio contract.
package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/srg/blip/internal/peripheral"
)

// MockRadioAdapter is a mock of peripheral.RadioAdapter.
type MockRadioAdapter struct {
	mock.Mock
}

// NewMockRadioAdapter creates a MockRadioAdapter whose expectations are
// asserted on test cleanup.
func NewMockRadioAdapter(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRadioAdapter {
	m := &MockRadioAdapter{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRadioAdapter) IsAdapterPresent() bool {
	return m.Called().Bool(0)
}

func (m *MockRadioAdapter) IsAdapterEnabled() bool {
	return m.Called().Bool(0)
}

func (m *MockRadioAdapter) RequestEnable() {
	m.Called()
}

func (m *MockRadioAdapter) OpenGattServer(sink peripheral.GattEventSink) (peripheral.ServerHandle, error) {
	args := m.Called(sink)
	var h peripheral.ServerHandle
	if fn, ok := args.Get(0).(func(peripheral.GattEventSink) peripheral.ServerHandle); ok {
		h = fn(sink)
	} else if v := args.Get(0); v != nil {
		h = v.(peripheral.ServerHandle)
	}
	return h, args.Error(1)
}

func (m *MockRadioAdapter) Advertiser() peripheral.Advertiser {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.(peripheral.Advertiser)
	}
	return nil
}

// MockServerHandle is a mock of peripheral.ServerHandle.
type MockServerHandle struct {
	mock.Mock
}

// NewMockServerHandle creates a MockServerHandle whose expectations are
// asserted on test cleanup.
func NewMockServerHandle(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockServerHandle {
	m := &MockServerHandle{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockServerHandle) AddService(svc *peripheral.ServiceDescriptor) error {
	return m.Called(svc).Error(0)
}

func (m *MockServerHandle) ClearServices() {
	m.Called()
}

func (m *MockServerHandle) Close() {
	m.Called()
}

func (m *MockServerHandle) SendResponse(peer peripheral.Peer, requestID int, status peripheral.Status, offset int, value []byte) error {
	return m.Called(peer, requestID, status, offset, value).Error(0)
}

func (m *MockServerHandle) NotifyCharacteristicChanged(peer peripheral.Peer, char *peripheral.CharacteristicDescriptor, confirm bool) error {
	return m.Called(peer, char, confirm).Error(0)
}

// MockAdvertiser is a mock of peripheral.Advertiser.
type MockAdvertiser struct {
	mock.Mock
}

// NewMockAdvertiser creates a MockAdvertiser whose expectations are asserted
// on test cleanup.
func NewMockAdvertiser(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAdvertiser {
	m := &MockAdvertiser{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAdvertiser) StartAdvertising(settings peripheral.AdvertiseSettings, payload peripheral.AdvertisePayload, sink peripheral.AdvertiseEventSink) error {
	return m.Called(settings, payload, sink).Error(0)
}

func (m *MockAdvertiser) StopAdvertising(sink peripheral.AdvertiseEventSink) {
	m.Called(sink)
}

var (
	_ peripheral.RadioAdapter = (*MockRadioAdapter)(nil)
	_ peripheral.ServerHandle = (*MockServerHandle)(nil)
	_ peripheral.Advertiser   = (*MockAdvertiser)(nil)
)
