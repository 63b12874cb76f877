// Package notify delivers stage notifications to an operator channel.
//
// Delivery is best effort: a Notifier logs sink failures and never returns them to the caller.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	lambdalib "github.com/aws/aws-sdk-go/service/lambda"
	"github.com/go-resty/resty/v2"

	"github.com/smartcontractkit/beamline/pkg/logger"
)

// ErrNoWebhookURL is returned when a Slack sink is created without a webhook URL.
var ErrNoWebhookURL = errors.New("slack webhook url is required")

// Sink receives a subject and a message.
type Sink interface {
	Send(ctx context.Context, subject, message string) error
}

// Subject returns the notification subject of a run.
func Subject(project, runID string) string {
	return fmt.Sprintf("Beamline update:%s %s", project, runID)
}

// LogSink writes notifications to the logger only.
type LogSink struct {
	lggr logger.Logger
}

var _ Sink = (*LogSink)(nil)

// NewLogSink creates a LogSink.
func NewLogSink(lggr logger.Logger) *LogSink {
	return &LogSink{lggr: lggr}
}

// Send implements Sink.
func (s *LogSink) Send(_ context.Context, subject, message string) error {
	s.lggr.Infow("Notification", "subject", subject, "message", message)

	return nil
}

// SlackSink posts notifications to a Slack incoming webhook.
type SlackSink struct {
	url    string
	client *resty.Client
}

var _ Sink = (*SlackSink)(nil)

// NewSlackSink creates a SlackSink posting to webhookURL.
func NewSlackSink(webhookURL string, timeout time.Duration) (*SlackSink, error) {
	if webhookURL == "" {
		return nil, ErrNoWebhookURL
	}

	return &SlackSink{
		url: webhookURL,
		client: resty.New().
			SetTimeout(timeout).
			SetHeaders(map[string]string{"Content-Type": "application/json"}),
	}, nil
}

// Send implements Sink.
func (s *SlackSink) Send(ctx context.Context, subject, message string) error {
	payload := map[string]string{
		"text": "*" + subject + "*\n" + message,
	}

	resp, err := s.client.R().SetContext(ctx).SetBody(payload).Post(s.url)
	if err != nil {
		return fmt.Errorf("failed to post to slack webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("slack webhook returned %s: %s", resp.Status(), strings.TrimSpace(resp.String()))
	}

	return nil
}

// Invoker is the subset of the Lambda API used by FunctionSink.
type Invoker interface {
	InvokeWithContext(ctx aws.Context, input *lambdalib.InvokeInput, opts ...request.Option) (*lambdalib.InvokeOutput, error)
}

// FunctionSink hands notifications to a relay function with an asynchronous invocation.
// The relay receives {"Subject": ..., "Message": ...}.
type FunctionSink struct {
	client   Invoker
	function string
}

var _ Sink = (*FunctionSink)(nil)

// NewFunctionSink creates a FunctionSink invoking function through client.
func NewFunctionSink(client Invoker, function string) *FunctionSink {
	return &FunctionSink{client: client, function: function}
}

// Send implements Sink.
func (s *FunctionSink) Send(ctx context.Context, subject, message string) error {
	payload, err := json.Marshal(relayPayload{Subject: subject, Message: message})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	out, err := s.client.InvokeWithContext(ctx, &lambdalib.InvokeInput{
		FunctionName:   aws.String(s.function),
		InvocationType: aws.String(lambdalib.InvocationTypeEvent),
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("failed to invoke relay function %s: %w", s.function, err)
	}
	if out.FunctionError != nil {
		return fmt.Errorf("relay function %s failed: %s", s.function, aws.StringValue(out.FunctionError))
	}

	return nil
}

type relayPayload struct {
	Subject string `json:"Subject"`
	Message string `json:"Message"`
}

// Multi fans a notification out to every sink. All sinks are attempted.
type Multi []Sink

var _ Sink = Multi(nil)

// Send implements Sink.
func (m Multi) Send(ctx context.Context, subject, message string) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, subject, message); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
