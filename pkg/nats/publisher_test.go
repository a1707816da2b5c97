package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/abgdnv/gocommerce-catalog/pkg/messaging"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockStream struct {
	mock.Mock
}

func (m *mockStream) Publish(ctx context.Context, subject string, payload []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	args := m.Called(ctx, subject, payload)
	ack, _ := args.Get(0).(*jetstream.PubAck)
	return ack, args.Error(1)
}

type stubEvent struct {
	payload []byte
	err     error
}

func (e stubEvent) Subject() string          { return messaging.ProductCreatedSubject }
func (e stubEvent) Payload() ([]byte, error) { return e.payload, e.err }

func TestNatsPublisher_Publish(t *testing.T) {
	errBroker := errors.New("no responders")
	errEncode := errors.New("encode failed")

	testCases := []struct {
		name        string
		event       stubEvent
		setupMock   func(m *mockStream)
		expectError error
	}{
		{
			name:  "Success - acknowledged",
			event: stubEvent{payload: []byte(`{}`)},
			setupMock: func(m *mockStream) {
				m.On("Publish", mock.Anything, messaging.ProductCreatedSubject, []byte(`{}`)).Return(&jetstream.PubAck{Stream: "CATALOG"}, nil)
			},
		},
		{
			name:  "Error - broker rejects",
			event: stubEvent{payload: []byte(`{}`)},
			setupMock: func(m *mockStream) {
				m.On("Publish", mock.Anything, messaging.ProductCreatedSubject, []byte(`{}`)).Return(nil, errBroker)
			},
			expectError: errBroker,
		},
		{
			name:        "Error - payload fails, nothing published",
			event:       stubEvent{err: errEncode},
			setupMock:   func(m *mockStream) {},
			expectError: errEncode,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			stream := new(mockStream)
			tc.setupMock(stream)
			publisher := &NatsPublisher{js: stream}
			// when
			err := publisher.Publish(context.Background(), tc.event)
			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
			} else {
				assert.NoError(t, err)
			}
			stream.AssertExpectations(t)
		})
	}
}
