package testutils

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/srg/blip/internal/peripheral"
	"github.com/srg/blip/internal/peripheral/mocks"
)

// MockRadioSuite provides a testify suite with a mocked radio that behaves
// like a healthy platform stack: the adapter is present and enabled, GATT
// servers open, services are confirmed and advertising starts successfully.
//
// Toggle the Auto* fields or override expectations before exercising the
// code under test:
//
//	type StartSuite struct {
//	    testutils.MockRadioSuite
//	}
//
//	func (s *StartSuite) TestStartIsConfirmed() {
//	    p := s.NewPeripheral(peripheral.DefaultOptions())
//	    s.Require().NoError(p.Start())
//	    s.Equal(peripheral.AdvertisingActive, p.State())
//	}
//
// Synchronous confirmations are delivered on the calling goroutine, exactly
// as an eager platform stack would.
type MockRadioSuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger

	Radio      *mocks.MockRadioAdapter
	Server     *mocks.MockServerHandle
	Advertiser *mocks.MockAdvertiser

	// AutoConfirmServices answers each AddService with OnServiceAdded(Success).
	AutoConfirmServices bool
	// AutoConfirmAdvertising answers each StartAdvertising with OnStartSuccess.
	AutoConfirmAdvertising bool

	mu      sync.Mutex
	sink    peripheral.GattEventSink
	advSink peripheral.AdvertiseEventSink
}

// SetupTest creates fresh mocks with the default healthy expectations.
func (s *MockRadioSuite) SetupTest() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.AutoConfirmServices = true
	s.AutoConfirmAdvertising = true

	s.mu.Lock()
	s.sink = nil
	s.advSink = nil
	s.mu.Unlock()

	s.Radio = mocks.NewMockRadioAdapter(s.T())
	s.Server = mocks.NewMockServerHandle(s.T())
	s.Advertiser = mocks.NewMockAdvertiser(s.T())

	s.Radio.On("IsAdapterPresent").Return(true).Maybe()
	s.Radio.On("IsAdapterEnabled").Return(true).Maybe()
	s.Radio.On("Advertiser").Return(s.Advertiser).Maybe()
	s.Radio.On("OpenGattServer", mock.Anything).
		Run(func(args mock.Arguments) {
			sink, _ := args.Get(0).(peripheral.GattEventSink)
			s.mu.Lock()
			s.sink = sink
			s.mu.Unlock()
		}).
		Return(s.Server, nil).Maybe()

	s.Server.On("AddService", mock.Anything).
		Run(func(args mock.Arguments) {
			if sink := s.GattSink(); sink != nil && s.AutoConfirmServices {
				sink.OnServiceAdded(peripheral.StatusSuccess, args.Get(0).(*peripheral.ServiceDescriptor))
			}
		}).
		Return(nil).Maybe()
	s.Server.On("ClearServices").Return().Maybe()
	s.Server.On("Close").Return().Maybe()

	s.Advertiser.On("StartAdvertising", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sink := args.Get(2).(peripheral.AdvertiseEventSink)
			s.mu.Lock()
			s.advSink = sink
			s.mu.Unlock()
			if s.AutoConfirmAdvertising {
				sink.OnStartSuccess(args.Get(0).(peripheral.AdvertiseSettings))
			}
		}).
		Return(nil).Maybe()
	s.Advertiser.On("StopAdvertising", mock.Anything).Return().Maybe()
}

// NewPeripheral builds a peripheral on the mocked radio.
func (s *MockRadioSuite) NewPeripheral(opts peripheral.Options) *peripheral.Peripheral {
	p := peripheral.New(s.Radio, opts, s.Logger)
	s.T().Cleanup(p.Close)
	return p
}

// GattSink returns the sink passed to the last OpenGattServer call.
func (s *MockRadioSuite) GattSink() peripheral.GattEventSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink
}

// AdvertiseSink returns the sink passed to the last StartAdvertising call.
func (s *MockRadioSuite) AdvertiseSink() peripheral.AdvertiseEventSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advSink
}

// ExpectResponse registers one expected SendResponse call.
func (s *MockRadioSuite) ExpectResponse(peer peripheral.Peer, requestID int, status peripheral.Status, offset int, value []byte) *mock.Call {
	return s.Server.On("SendResponse", peer, requestID, status, offset, value).Return(nil).Once()
}

// ExpectNotify registers one expected NotifyCharacteristicChanged call.
func (s *MockRadioSuite) ExpectNotify(peer peripheral.Peer, confirm bool) *mock.Call {
	return s.Server.On("NotifyCharacteristicChanged", peer, mock.Anything, confirm).Return(nil).Once()
}

// DropDefault removes the default expectation for method from m so a test
// can register its own. testify matches expectations in registration order.
func DropDefault(m *mock.Mock, method string) {
	calls := append([]*mock.Call(nil), m.ExpectedCalls...)
	for _, c := range calls {
		if c.Method == method {
			c.Unset()
			return
		}
	}
}
