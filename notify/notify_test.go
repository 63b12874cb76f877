package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	lambdalib "github.com/aws/aws-sdk-go/service/lambda"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/smartcontractkit/beamline/pkg/logger"
)

type mockInvoker struct {
	mock.Mock
}

func (m *mockInvoker) InvokeWithContext(ctx aws.Context, input *lambdalib.InvokeInput, opts ...request.Option) (*lambdalib.InvokeOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*lambdalib.InvokeOutput), args.Error(1)
}

type failingSink struct{}

func (failingSink) Send(context.Context, string, string) error {
	return assert.AnError
}

func Test_Subject(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Beamline update:orders 2mZ0", Subject("orders", "2mZ0"))
}

func Test_SlackSink_Send(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		giveStatus int
		wantErr    string
	}{
		{
			name:       "accepted",
			giveStatus: http.StatusOK,
		},
		{
			name:       "rejected",
			giveStatus: http.StatusForbidden,
			wantErr:    "slack webhook returned 403",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got map[string]string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				assert.NoError(t, err)
				assert.NoError(t, json.Unmarshal(body, &got))
				w.WriteHeader(tt.giveStatus)
				_, _ = w.Write([]byte("ok"))
			}))
			defer srv.Close()

			sink, err := NewSlackSink(srv.URL, 2*time.Second)
			require.NoError(t, err)

			err = sink.Send(t.Context(), "Beamline update:orders run1", "Build completed")
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "*Beamline update:orders run1*\nBuild completed", got["text"])
		})
	}
}

func Test_NewSlackSink_NoURL(t *testing.T) {
	t.Parallel()

	_, err := NewSlackSink("", time.Second)
	require.ErrorIs(t, err, ErrNoWebhookURL)
}

func Test_FunctionSink_Send(t *testing.T) {
	t.Parallel()

	t.Run("invokes the relay asynchronously", func(t *testing.T) {
		t.Parallel()

		client := &mockInvoker{}
		client.On("InvokeWithContext", mock.Anything, mock.MatchedBy(func(in *lambdalib.InvokeInput) bool {
			var p relayPayload
			if err := json.Unmarshal(in.Payload, &p); err != nil {
				return false
			}

			return aws.StringValue(in.FunctionName) == "slack-notify" &&
				aws.StringValue(in.InvocationType) == lambdalib.InvocationTypeEvent &&
				p.Subject == "subject" && p.Message == "message"
		})).Return(&lambdalib.InvokeOutput{StatusCode: aws.Int64(202)}, nil)

		require.NoError(t, NewFunctionSink(client, "slack-notify").Send(t.Context(), "subject", "message"))
		client.AssertExpectations(t)
	})

	t.Run("invoke failure is returned", func(t *testing.T) {
		t.Parallel()

		client := &mockInvoker{}
		client.On("InvokeWithContext", mock.Anything, mock.Anything).Return(nil, assert.AnError)

		err := NewFunctionSink(client, "slack-notify").Send(t.Context(), "subject", "message")
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("function error is returned", func(t *testing.T) {
		t.Parallel()

		client := &mockInvoker{}
		client.On("InvokeWithContext", mock.Anything, mock.Anything).
			Return(&lambdalib.InvokeOutput{FunctionError: aws.String("Unhandled")}, nil)

		err := NewFunctionSink(client, "slack-notify").Send(t.Context(), "subject", "message")
		require.ErrorContains(t, err, "Unhandled")
	})
}

func Test_Multi_Send(t *testing.T) {
	t.Parallel()

	lggr, logs := logger.TestObserved(t, zapcore.InfoLevel)

	err := Multi{failingSink{}, NewLogSink(lggr)}.Send(t.Context(), "subject", "message")
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, logs.FilterMessage("Notification").Len(), "later sinks still receive the message")
}

func Test_Notifier_Notify(t *testing.T) {
	t.Parallel()

	lggr, logs := logger.TestObserved(t, zapcore.WarnLevel)

	n := NewNotifier(failingSink{}, lggr)
	assert.False(t, n.Notify(t.Context(), "subject", "message"))

	entries := logs.FilterMessage("Notification not delivered").All()
	require.Len(t, entries, 1)
	nerr, ok := entries[0].ContextMap()["error"]
	require.True(t, ok)
	assert.Contains(t, nerr, "failed to deliver notification")

	assert.True(t, NewNotifier(nil, lggr).Notify(t.Context(), "subject", "message"))
}
