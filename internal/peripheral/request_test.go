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

var peerA = peripheral.Peer{Address: "11:22:33:44:55:66"}

type RequestSuite struct {
	testutils.MockRadioSuite
	p *peripheral.Peripheral
}

func TestRequestSuite(t *testing.T) {
	suite.Run(t, new(RequestSuite))
}

func (s *RequestSuite) SetupTest() {
	s.MockRadioSuite.SetupTest()
	s.p = s.NewPeripheral(peripheral.DefaultOptions())
	s.Require().NoError(s.p.Start())
	s.drain()
}

func (s *RequestSuite) drain() {
	for {
		select {
		case <-s.p.Events():
		default:
			return
		}
	}
}

func (s *RequestSuite) charID() uuid.UUID {
	return peripheral.DefaultCharacteristicUUID
}

func (s *RequestSuite) TestWriteIsEchoedAndPublished() {
	s.ExpectResponse(peerA, 7, peripheral.StatusSuccess, 0, []byte("ping"))

	s.GattSink().OnCharacteristicWriteRequest(peripheral.WriteRequest{
		Peer:             peerA,
		RequestID:        7,
		CharacteristicID: s.charID(),
		ResponseNeeded:   true,
		Value:            []byte("ping"),
	})

	s.Server.AssertNumberOfCalls(s.T(), "SendResponse", 1)
	s.Equal([]byte("ping"), s.p.Characteristic().Value())

	ev := <-s.p.Events()
	s.Equal(peripheral.EventIncomingValue, ev.Type)
	s.Equal("ping", ev.Text)
	s.Equal(peerA, ev.Peer)
}

func (s *RequestSuite) TestWriteWithoutResponse() {
	s.GattSink().OnCharacteristicWriteRequest(peripheral.WriteRequest{
		Peer:             peerA,
		RequestID:        3,
		CharacteristicID: s.charID(),
		Value:            []byte("quiet"),
	})

	s.Server.AssertNotCalled(s.T(), "SendResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	s.Equal([]byte("quiet"), s.p.Characteristic().Value())
}

func (s *RequestSuite) TestEmptyWriteIsAnswered() {
	s.ExpectResponse(peerA, 9, peripheral.StatusInvalidAttributeValueLength, 0, nil)

	s.GattSink().OnCharacteristicWriteRequest(peripheral.WriteRequest{
		Peer:             peerA,
		RequestID:        9,
		CharacteristicID: s.charID(),
		ResponseNeeded:   true,
	})

	s.Empty(s.p.Characteristic().Value())
	s.Len(s.p.Events(), 0)
}

func (s *RequestSuite) TestEmptyWriteWithoutResponseIsDropped() {
	s.GattSink().OnCharacteristicWriteRequest(peripheral.WriteRequest{
		Peer:             peerA,
		RequestID:        9,
		CharacteristicID: s.charID(),
	})

	s.Server.AssertNotCalled(s.T(), "SendResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *RequestSuite) TestWriteToUnknownCharacteristic() {
	s.ExpectResponse(peerA, 4, peripheral.StatusAttributeNotFound, 0, nil)

	s.GattSink().OnCharacteristicWriteRequest(peripheral.WriteRequest{
		Peer:             peerA,
		RequestID:        4,
		CharacteristicID: uuid.New(),
		ResponseNeeded:   true,
		Value:            []byte("x"),
	})

	s.Empty(s.p.Characteristic().Value())
}

func (s *RequestSuite) TestLongWriteAppendsAtOffset() {
	s.ExpectResponse(peerA, 1, peripheral.StatusSuccess, 0, []byte("hello "))
	s.ExpectResponse(peerA, 2, peripheral.StatusSuccess, 6, []byte("world"))

	s.GattSink().OnCharacteristicWriteRequest(peripheral.WriteRequest{
		Peer: peerA, RequestID: 1, CharacteristicID: s.charID(),
		PreparedWrite: true, ResponseNeeded: true, Value: []byte("hello "),
	})
	s.GattSink().OnCharacteristicWriteRequest(peripheral.WriteRequest{
		Peer: peerA, RequestID: 2, CharacteristicID: s.charID(),
		PreparedWrite: true, ResponseNeeded: true, Offset: 6, Value: []byte("world"),
	})

	s.Equal("hello world", string(s.p.Characteristic().Value()))
}

func (s *RequestSuite) TestWriteOffsetPastEnd() {
	s.ExpectResponse(peerA, 5, peripheral.StatusInvalidOffset, 10, nil)

	s.GattSink().OnCharacteristicWriteRequest(peripheral.WriteRequest{
		Peer: peerA, RequestID: 5, CharacteristicID: s.charID(),
		ResponseNeeded: true, Offset: 10, Value: []byte("x"),
	})
}

func (s *RequestSuite) TestInvalidUTF8IsReplaced() {
	s.ExpectResponse(peerA, 6, peripheral.StatusSuccess, 0, []byte{'o', 'k', 0xff})

	s.GattSink().OnCharacteristicWriteRequest(peripheral.WriteRequest{
		Peer: peerA, RequestID: 6, CharacteristicID: s.charID(),
		ResponseNeeded: true, Value: []byte{'o', 'k', 0xff},
	})

	ev := <-s.p.Events()
	s.Equal("ok\uFFFD", ev.Text)
}

func (s *RequestSuite) TestReadReturnsSyntheticValue() {
	s.ExpectResponse(peerA, 11, peripheral.StatusSuccess, 0, []byte("test"))

	s.GattSink().OnCharacteristicReadRequest(peerA, 11, 0, s.charID())

	s.Server.AssertNumberOfCalls(s.T(), "SendResponse", 1)
	s.Equal([]byte("test"), s.p.Characteristic().Value())
}

func (s *RequestSuite) TestReadAtOffset() {
	s.ExpectResponse(peerA, 12, peripheral.StatusSuccess, 2, []byte("st"))

	s.GattSink().OnCharacteristicReadRequest(peerA, 12, 2, s.charID())
}

func (s *RequestSuite) TestReadOffsetPastEnd() {
	s.ExpectResponse(peerA, 13, peripheral.StatusInvalidOffset, 5, nil)

	s.GattSink().OnCharacteristicReadRequest(peerA, 13, 5, s.charID())
}

func (s *RequestSuite) TestReadOfUnknownCharacteristic() {
	s.ExpectResponse(peerA, 14, peripheral.StatusAttributeNotFound, 0, nil)

	s.GattSink().OnCharacteristicReadRequest(peerA, 14, 0, uuid.New())
}

func (s *RequestSuite) TestSendWithoutPeer() {
	err := s.p.Send("hello")

	s.True(errors.Is(err, peripheral.ErrNoPeerConnected))
	s.Equal([]byte("hello"), s.p.Characteristic().Value())
	s.Server.AssertNotCalled(s.T(), "NotifyCharacteristicChanged", mock.Anything, mock.Anything, mock.Anything)
}

func (s *RequestSuite) TestSendNotifiesConnectedPeer() {
	s.ExpectNotify(peerA, true)
	s.GattSink().OnConnectionStateChange(peerA, 0, peripheral.StateConnected)

	s.Require().NoError(s.p.Send("hello"))

	s.Server.AssertNumberOfCalls(s.T(), "NotifyCharacteristicChanged", 1)
	s.Equal([]byte("hello"), s.p.Characteristic().Value())
}

func (s *RequestSuite) TestSendNotifyFailure() {
	s.Server.On("NotifyCharacteristicChanged", peerA, mock.Anything, true).Return(errors.New("link lost")).Once()
	s.GattSink().OnConnectionStateChange(peerA, 0, peripheral.StateConnected)

	err := s.p.Send("hello")

	s.True(errors.Is(err, peripheral.ErrNotificationUnavailable))
}

func (s *RequestSuite) TestSendAfterDisconnect() {
	s.GattSink().OnConnectionStateChange(peerA, 0, peripheral.StateConnected)
	s.GattSink().OnConnectionStateChange(peerA, 0, peripheral.StateDisconnected)

	err := s.p.Send("hello")

	s.True(errors.Is(err, peripheral.ErrNoPeerConnected))
}

func (s *RequestSuite) TestStoredReadsAndPermissions() {
	charID := uuid.New()
	roID := uuid.New()
	svc := peripheral.NewService(uuid.New(),
		peripheral.NewCharacteristic(charID, peripheral.PermRead|peripheral.PermWrite),
		peripheral.NewCharacteristic(roID, peripheral.PermRead),
	)
	c, _ := svc.Characteristic(charID)
	c.SetText("stored")

	s.AutoConfirmServices = false
	gatt := peripheral.NewGattServerController(s.Radio, nil, nil, s.Logger)
	tracker := peripheral.NewConnectionTracker(nil, s.Logger)
	rh := peripheral.NewRequestHandler(svc, charID, gatt, tracker, peripheral.ReadPolicy{}, false, nil, s.Logger)
	s.Require().NoError(gatt.Open([]*peripheral.ServiceDescriptor{svc}))

	s.ExpectResponse(peerA, 1, peripheral.StatusSuccess, 0, []byte("stored"))
	s.ExpectResponse(peerA, 2, peripheral.StatusWriteNotPermitted, 0, nil)

	rh.OnCharacteristicReadRequest(peerA, 1, 0, charID)
	rh.OnCharacteristicWriteRequest(peripheral.WriteRequest{
		Peer: peerA, RequestID: 2, CharacteristicID: roID, ResponseNeeded: true, Value: []byte("x"),
	})

	s.Equal("stored", string(c.Value()))
}
