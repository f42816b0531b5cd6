package peripheral_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/srg/blip/internal/peripheral"
	"github.com/srg/blip/internal/testutils"
)

type GattServerSuite struct {
	testutils.MockRadioSuite
	published []peripheral.Event
	gatt      *peripheral.GattServerController
}

func TestGattServerSuite(t *testing.T) {
	suite.Run(t, new(GattServerSuite))
}

func (s *GattServerSuite) SetupTest() {
	s.MockRadioSuite.SetupTest()
	s.published = nil
	p := s.NewPeripheral(peripheral.DefaultOptions())
	s.gatt = peripheral.NewGattServerController(s.Radio, p, func(ev peripheral.Event) {
		s.published = append(s.published, ev)
	}, s.Logger)
}

func (s *GattServerSuite) TestOpenAddsEachService() {
	a := peripheral.NewService(uuid.New(), peripheral.NewCharacteristic(uuid.New(), peripheral.PermRead))
	b := peripheral.NewService(uuid.New(), peripheral.NewCharacteristic(uuid.New(), peripheral.PermWrite))
	s.AutoConfirmServices = false

	s.Require().NoError(s.gatt.Open([]*peripheral.ServiceDescriptor{a, b}))

	s.True(s.gatt.IsOpen())
	s.Equal([]uuid.UUID{a.ID, b.ID}, s.gatt.ServiceUUIDs())
	s.Server.AssertCalled(s.T(), "AddService", a)
	s.Server.AssertCalled(s.T(), "AddService", b)
	s.False(s.gatt.Confirmed(a.ID), "services are confirmed asynchronously")

	s.gatt.OnServiceAdded(peripheral.StatusSuccess, a)
	s.gatt.OnServiceAdded(peripheral.StatusFailure, b)
	s.True(s.gatt.Confirmed(a.ID))
	s.False(s.gatt.Confirmed(b.ID))
	s.Require().Len(s.published, 2)
	s.Equal(peripheral.StatusFailure, s.published[1].Status)
	s.Equal(b.ID, s.published[1].ServiceID)
}

func (s *GattServerSuite) TestOpenIsIdempotent() {
	svc := peripheral.NewService(uuid.New())
	s.Require().NoError(s.gatt.Open([]*peripheral.ServiceDescriptor{svc}))
	s.Require().NoError(s.gatt.Open([]*peripheral.ServiceDescriptor{svc}))

	s.Radio.AssertNumberOfCalls(s.T(), "OpenGattServer", 1)
	s.Len(s.gatt.Services(), 1)
}

func (s *GattServerSuite) TestOpenWithoutServerCapability() {
	testutils.DropDefault(&s.Radio.Mock, "OpenGattServer")
	s.Radio.On("OpenGattServer", mock.Anything).Return(nil, nil)

	err := s.gatt.Open([]*peripheral.ServiceDescriptor{peripheral.NewService(uuid.New())})

	s.True(errors.Is(err, peripheral.ErrServerUnavailable))
	s.False(s.gatt.IsOpen())
}

func (s *GattServerSuite) TestAddServiceErrorClosesServer() {
	testutils.DropDefault(&s.Server.Mock, "AddService")
	s.Server.On("AddService", mock.Anything).Return(errors.New("rejected"))

	err := s.gatt.Open([]*peripheral.ServiceDescriptor{peripheral.NewService(uuid.New())})

	s.Error(err)
	s.False(s.gatt.IsOpen())
	s.Empty(s.gatt.Services())
	s.Server.AssertCalled(s.T(), "Close")
}

func (s *GattServerSuite) TestCloseIsIdempotent() {
	s.gatt.Close()
	s.Server.AssertNotCalled(s.T(), "Close")

	s.Require().NoError(s.gatt.Open([]*peripheral.ServiceDescriptor{peripheral.NewService(uuid.New())}))
	s.gatt.Close()
	s.gatt.Close()

	s.Server.AssertNumberOfCalls(s.T(), "ClearServices", 1)
	s.Server.AssertNumberOfCalls(s.T(), "Close", 1)
	s.Nil(s.gatt.Handle())
	s.Empty(s.gatt.ServiceUUIDs())
}
