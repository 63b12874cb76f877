package lambda

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	lambdalib "github.com/aws/aws-sdk-go/service/lambda"
	"github.com/stretchr/testify/mock"
)

// mockAPI is a testify mock of API.
type mockAPI struct {
	mock.Mock
}

var _ API = (*mockAPI)(nil)

func (m *mockAPI) GetFunctionWithContext(ctx aws.Context, input *lambdalib.GetFunctionInput, _ ...request.Option) (*lambdalib.GetFunctionOutput, error) {
	args := m.Called(ctx, input)

	return getOr[*lambdalib.GetFunctionOutput](args, 0), args.Error(1)
}

func (m *mockAPI) GetFunctionConfigurationWithContext(ctx aws.Context, input *lambdalib.GetFunctionConfigurationInput, _ ...request.Option) (*lambdalib.FunctionConfiguration, error) {
	args := m.Called(ctx, input)

	return getOr[*lambdalib.FunctionConfiguration](args, 0), args.Error(1)
}

func (m *mockAPI) CreateFunctionWithContext(ctx aws.Context, input *lambdalib.CreateFunctionInput, _ ...request.Option) (*lambdalib.FunctionConfiguration, error) {
	args := m.Called(ctx, input)

	return getOr[*lambdalib.FunctionConfiguration](args, 0), args.Error(1)
}

func (m *mockAPI) UpdateFunctionCodeWithContext(ctx aws.Context, input *lambdalib.UpdateFunctionCodeInput, _ ...request.Option) (*lambdalib.FunctionConfiguration, error) {
	args := m.Called(ctx, input)

	return getOr[*lambdalib.FunctionConfiguration](args, 0), args.Error(1)
}

func (m *mockAPI) UpdateFunctionConfigurationWithContext(ctx aws.Context, input *lambdalib.UpdateFunctionConfigurationInput, _ ...request.Option) (*lambdalib.FunctionConfiguration, error) {
	args := m.Called(ctx, input)

	return getOr[*lambdalib.FunctionConfiguration](args, 0), args.Error(1)
}

func (m *mockAPI) InvokeWithContext(ctx aws.Context, input *lambdalib.InvokeInput, _ ...request.Option) (*lambdalib.InvokeOutput, error) {
	args := m.Called(ctx, input)

	return getOr[*lambdalib.InvokeOutput](args, 0), args.Error(1)
}

func (m *mockAPI) PublishVersionWithContext(ctx aws.Context, input *lambdalib.PublishVersionInput, _ ...request.Option) (*lambdalib.FunctionConfiguration, error) {
	args := m.Called(ctx, input)

	return getOr[*lambdalib.FunctionConfiguration](args, 0), args.Error(1)
}

func (m *mockAPI) ListAliasesPagesWithContext(ctx aws.Context, input *lambdalib.ListAliasesInput, fn func(*lambdalib.ListAliasesOutput, bool) bool, _ ...request.Option) error {
	args := m.Called(ctx, input)
	pages := getOr[[]*lambdalib.ListAliasesOutput](args, 0)
	for i, page := range pages {
		if !fn(page, i == len(pages)-1) {
			break
		}
	}

	return args.Error(1)
}

func (m *mockAPI) CreateAliasWithContext(ctx aws.Context, input *lambdalib.CreateAliasInput, _ ...request.Option) (*lambdalib.AliasConfiguration, error) {
	args := m.Called(ctx, input)

	return getOr[*lambdalib.AliasConfiguration](args, 0), args.Error(1)
}

func (m *mockAPI) UpdateAliasWithContext(ctx aws.Context, input *lambdalib.UpdateAliasInput, _ ...request.Option) (*lambdalib.AliasConfiguration, error) {
	args := m.Called(ctx, input)

	return getOr[*lambdalib.AliasConfiguration](args, 0), args.Error(1)
}

func getOr[T any](args mock.Arguments, i int) T {
	var zero T
	v, ok := args.Get(i).(T)
	if !ok {
		return zero
	}

	return v
}
