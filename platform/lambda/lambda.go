// Package lambda implements the platform capability surface on AWS Lambda.
package lambda

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	lambdalib "github.com/aws/aws-sdk-go/service/lambda"

	"github.com/smartcontractkit/beamline/pkg/logger"
	"github.com/smartcontractkit/beamline/platform"
)

// API is the subset of the Lambda API used by Platform. It is satisfied by *lambda.Lambda.
type API interface {
	GetFunctionWithContext(ctx aws.Context, input *lambdalib.GetFunctionInput, opts ...request.Option) (*lambdalib.GetFunctionOutput, error)
	GetFunctionConfigurationWithContext(ctx aws.Context, input *lambdalib.GetFunctionConfigurationInput, opts ...request.Option) (*lambdalib.FunctionConfiguration, error)
	CreateFunctionWithContext(ctx aws.Context, input *lambdalib.CreateFunctionInput, opts ...request.Option) (*lambdalib.FunctionConfiguration, error)
	UpdateFunctionCodeWithContext(ctx aws.Context, input *lambdalib.UpdateFunctionCodeInput, opts ...request.Option) (*lambdalib.FunctionConfiguration, error)
	UpdateFunctionConfigurationWithContext(ctx aws.Context, input *lambdalib.UpdateFunctionConfigurationInput, opts ...request.Option) (*lambdalib.FunctionConfiguration, error)
	InvokeWithContext(ctx aws.Context, input *lambdalib.InvokeInput, opts ...request.Option) (*lambdalib.InvokeOutput, error)
	PublishVersionWithContext(ctx aws.Context, input *lambdalib.PublishVersionInput, opts ...request.Option) (*lambdalib.FunctionConfiguration, error)
	ListAliasesPagesWithContext(ctx aws.Context, input *lambdalib.ListAliasesInput, fn func(*lambdalib.ListAliasesOutput, bool) bool, opts ...request.Option) error
	CreateAliasWithContext(ctx aws.Context, input *lambdalib.CreateAliasInput, opts ...request.Option) (*lambdalib.AliasConfiguration, error)
	UpdateAliasWithContext(ctx aws.Context, input *lambdalib.UpdateAliasInput, opts ...request.Option) (*lambdalib.AliasConfiguration, error)
}

var _ API = (*lambdalib.Lambda)(nil)

// Options tunes the readiness polling of a Platform.
type Options struct {
	// PollAttempts bounds how many times WaitReady reads the function state.
	PollAttempts uint
	// PollDelay is the fixed delay between two reads.
	PollDelay time.Duration
}

// DefaultOptions polls for up to five minutes.
var DefaultOptions = Options{
	PollAttempts: 60,
	PollDelay:    5 * time.Second,
}

// Platform is the Lambda backed platform.
type Platform struct {
	client API
	opts   Options
	lggr   logger.Logger
}

var _ platform.Platform = (*Platform)(nil)

// New creates a Platform using client.
func New(client API, opts Options, lggr logger.Logger) *Platform {
	if opts.PollAttempts == 0 {
		opts.PollAttempts = DefaultOptions.PollAttempts
	}

	return &Platform{client: client, opts: opts, lggr: lggr}
}

// NewSession creates an AWS session for region. An empty profile uses the default credential
// chain.
func NewSession(region, profile string) (*session.Session, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            aws.Config{Region: aws.String(region)},
		Profile:           profile,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	return sess, nil
}

// NewFromSession creates a Platform from an AWS session.
func NewFromSession(sess *session.Session, opts Options, lggr logger.Logger) *Platform {
	return New(lambdalib.New(sess), opts, lggr)
}

// GetFunction implements platform.Platform.
func (p *Platform) GetFunction(ctx context.Context, name string) (*platform.FunctionInfo, error) {
	out, err := p.client.GetFunctionWithContext(ctx, &lambdalib.GetFunctionInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		return nil, mapError(err)
	}
	if out.Configuration == nil {
		return nil, fmt.Errorf("function %s returned no configuration", name)
	}

	return toFunctionInfo(out.Configuration), nil
}

// CreateFunction implements platform.Platform.
func (p *Platform) CreateFunction(ctx context.Context, spec platform.FunctionSpec) (string, error) {
	out, err := p.client.CreateFunctionWithContext(ctx, &lambdalib.CreateFunctionInput{
		FunctionName: aws.String(spec.Name),
		Code: &lambdalib.FunctionCode{
			S3Bucket: aws.String(spec.Code.Bucket),
			S3Key:    aws.String(spec.Code.Key),
		},
		Handler:     aws.String(spec.Config.Handler),
		Role:        aws.String(spec.Config.Role),
		Runtime:     aws.String(spec.Config.Runtime),
		MemorySize:  aws.Int64(spec.Config.MemoryMB),
		Timeout:     aws.Int64(spec.Config.TimeoutSec),
		Description: aws.String(spec.Config.Description),
	})
	if err != nil {
		return "", mapError(err)
	}

	return aws.StringValue(out.FunctionArn), nil
}

// UpdateCode implements platform.Platform.
func (p *Platform) UpdateCode(ctx context.Context, name string, loc platform.CodeLocation) error {
	_, err := p.client.UpdateFunctionCodeWithContext(ctx, &lambdalib.UpdateFunctionCodeInput{
		FunctionName: aws.String(name),
		S3Bucket:     aws.String(loc.Bucket),
		S3Key:        aws.String(loc.Key),
	})

	return mapError(err)
}

// UpdateConfiguration implements platform.Platform.
func (p *Platform) UpdateConfiguration(ctx context.Context, name string, cfg platform.Configuration) error {
	_, err := p.client.UpdateFunctionConfigurationWithContext(ctx, &lambdalib.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(name),
		Handler:      aws.String(cfg.Handler),
		Role:         aws.String(cfg.Role),
		Runtime:      aws.String(cfg.Runtime),
		MemorySize:   aws.Int64(cfg.MemoryMB),
		Timeout:      aws.Int64(cfg.TimeoutSec),
		Description:  aws.String(cfg.Description),
	})

	return mapError(err)
}

// errNotReady is returned by a readiness probe that should be retried.
var errNotReady = errors.New("function is not ready")

// WaitReady implements platform.Platform. It polls the function until it is active and no
// update is in progress.
func (p *Platform) WaitReady(ctx context.Context, name string) error {
	return retry.Do(func() error {
		cfg, err := p.client.GetFunctionConfigurationWithContext(ctx, &lambdalib.GetFunctionConfigurationInput{
			FunctionName: aws.String(name),
		})
		if err != nil {
			return retry.Unrecoverable(mapError(err))
		}

		return readiness(cfg)
	},
		retry.Context(ctx),
		retry.Attempts(p.opts.PollAttempts),
		retry.Delay(p.opts.PollDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errNotReady) }),
		retry.OnRetry(func(attempt uint, err error) {
			p.lggr.Debugw("Waiting for function", "function", name, "attempt", attempt+1, "reason", err)
		}),
	)
}

func readiness(cfg *lambdalib.FunctionConfiguration) error {
	switch aws.StringValue(cfg.State) {
	case lambdalib.StateFailed:
		return fmt.Errorf("function entered state %s: %s", lambdalib.StateFailed, aws.StringValue(cfg.StateReason))
	case lambdalib.StatePending:
		return fmt.Errorf("%w: state %s", errNotReady, lambdalib.StatePending)
	}

	switch aws.StringValue(cfg.LastUpdateStatus) {
	case lambdalib.LastUpdateStatusFailed:
		return fmt.Errorf("last update failed: %s", aws.StringValue(cfg.LastUpdateStatusReason))
	case lambdalib.LastUpdateStatusInProgress:
		return fmt.Errorf("%w: update %s", errNotReady, lambdalib.LastUpdateStatusInProgress)
	}

	return nil
}

// Invoke implements platform.Platform with a synchronous invocation.
func (p *Platform) Invoke(ctx context.Context, name, qualifier string, payload []byte) (*platform.Invocation, error) {
	in := &lambdalib.InvokeInput{
		FunctionName:   aws.String(name),
		InvocationType: aws.String(lambdalib.InvocationTypeRequestResponse),
		Payload:        payload,
	}
	if qualifier != "" {
		in.Qualifier = aws.String(qualifier)
	}

	out, err := p.client.InvokeWithContext(ctx, in)
	if err != nil {
		return nil, mapError(err)
	}

	return &platform.Invocation{
		StatusCode:    int(aws.Int64Value(out.StatusCode)),
		Body:          out.Payload,
		FunctionError: aws.StringValue(out.FunctionError),
	}, nil
}

// PublishVersion implements platform.Platform. A non empty codeDigest makes Lambda refuse to
// publish if the function code differs.
func (p *Platform) PublishVersion(ctx context.Context, name, codeDigest string) (platform.Version, error) {
	in := &lambdalib.PublishVersionInput{FunctionName: aws.String(name)}
	if codeDigest != "" {
		in.CodeSha256 = aws.String(codeDigest)
	}

	out, err := p.client.PublishVersionWithContext(ctx, in)
	if err != nil {
		return "", mapError(err)
	}

	return platform.Version(aws.StringValue(out.Version)), nil
}

// GetAliases implements platform.Platform.
func (p *Platform) GetAliases(ctx context.Context, name string) (map[string]platform.Version, error) {
	aliases := make(map[string]platform.Version)
	err := p.client.ListAliasesPagesWithContext(ctx, &lambdalib.ListAliasesInput{
		FunctionName: aws.String(name),
	}, func(page *lambdalib.ListAliasesOutput, _ bool) bool {
		for _, a := range page.Aliases {
			aliases[aws.StringValue(a.Name)] = platform.Version(aws.StringValue(a.FunctionVersion))
		}

		return true
	})
	if err != nil {
		return nil, mapError(err)
	}

	return aliases, nil
}

// CreateAlias implements platform.Platform.
func (p *Platform) CreateAlias(ctx context.Context, name, alias string, v platform.Version) error {
	_, err := p.client.CreateAliasWithContext(ctx, &lambdalib.CreateAliasInput{
		FunctionName:    aws.String(name),
		Name:            aws.String(alias),
		FunctionVersion: aws.String(v.String()),
	})

	return mapError(err)
}

// UpdateAlias implements platform.Platform.
func (p *Platform) UpdateAlias(ctx context.Context, name, alias string, v platform.Version) error {
	_, err := p.client.UpdateAliasWithContext(ctx, &lambdalib.UpdateAliasInput{
		FunctionName:    aws.String(name),
		Name:            aws.String(alias),
		FunctionVersion: aws.String(v.String()),
	})

	return mapError(err)
}

// mapError wraps err with platform.ErrFunctionNotFound when Lambda reports a missing
// resource with a 404. Any other error is returned as is.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var awsErr awserr.Error
	if !errors.As(err, &awsErr) || awsErr.Code() != lambdalib.ErrCodeResourceNotFoundException {
		return err
	}
	var reqErr awserr.RequestFailure
	if !errors.As(err, &reqErr) || reqErr.StatusCode() != http.StatusNotFound {
		return err
	}

	return fmt.Errorf("%w: %w", platform.ErrFunctionNotFound, err)
}

func toFunctionInfo(cfg *lambdalib.FunctionConfiguration) *platform.FunctionInfo {
	return &platform.FunctionInfo{
		Name:       aws.StringValue(cfg.FunctionName),
		ARN:        aws.StringValue(cfg.FunctionArn),
		CodeDigest: aws.StringValue(cfg.CodeSha256),
		Config: platform.Configuration{
			Handler:     aws.StringValue(cfg.Handler),
			Role:        aws.StringValue(cfg.Role),
			Runtime:     aws.StringValue(cfg.Runtime),
			MemoryMB:    aws.Int64Value(cfg.MemorySize),
			TimeoutSec:  aws.Int64Value(cfg.Timeout),
			Description: aws.StringValue(cfg.Description),
		},
	}
}
