package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/beamline/artifact"
	"github.com/smartcontractkit/beamline/platform"
)

func Test_Platform_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	p := New()
	a := artifact.New("orders.zip", []byte("package"))

	loc, err := p.Put(ctx, "RELEASE/FORK/orders-alice.zip", a)
	require.NoError(t, err)
	assert.Equal(t, platform.CodeLocation{Bucket: Bucket, Key: "RELEASE/FORK/orders-alice.zip"}, loc)

	_, err = p.GetFunction(ctx, "orders-alice")
	require.ErrorIs(t, err, platform.ErrFunctionNotFound)

	_, err = p.CreateFunction(ctx, platform.FunctionSpec{Name: "orders-alice", Code: loc})
	require.NoError(t, err)
	require.NoError(t, p.WaitReady(ctx, "orders-alice"))

	info, err := p.GetFunction(ctx, "orders-alice")
	require.NoError(t, err)
	assert.Equal(t, a.Digest.String(), info.CodeDigest)

	_, err = p.PublishVersion(ctx, "orders-alice", "other")
	require.ErrorContains(t, err, "does not match")

	v, err := p.PublishVersion(ctx, "orders-alice", a.Digest.String())
	require.NoError(t, err)
	assert.Equal(t, platform.Version("1"), v)

	require.NoError(t, p.CreateAlias(ctx, "orders-alice", "CURR_STABLE", v))
	require.Error(t, p.CreateAlias(ctx, "orders-alice", "CURR_STABLE", v))
	require.Error(t, p.UpdateAlias(ctx, "orders-alice", "LAST_STABLE", v))
	assert.Equal(t, map[string]platform.Version{"CURR_STABLE": "1"}, p.Aliases("orders-alice"))

	snap, ok := p.VersionSnapshot("orders-alice", "1")
	require.True(t, ok)
	assert.Equal(t, a.Digest.String(), snap.Digest)

	assert.Equal(t, 1, p.CallCount(OpCreateFunction))
	assert.Equal(t, 2, p.CallCount(OpPublishVersion))
}

func Test_Platform_Invoke(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	p := New()
	p.SeedFunction("orders-alice", []byte("code"), platform.Configuration{}, 2,
		map[string]platform.Version{"CURR_STABLE": "2"})

	out, err := p.Invoke(ctx, "orders-alice", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 200, out.StatusCode)

	p.SetInvokeStatus("CURR_STABLE", 500)
	out, err = p.Invoke(ctx, "orders-alice", "CURR_STABLE", nil)
	require.NoError(t, err)
	assert.Equal(t, 500, out.StatusCode)

	_, err = p.Invoke(ctx, "orders-alice", "1", nil)
	require.NoError(t, err)

	_, err = p.Invoke(ctx, "orders-alice", "LAST_STABLE", nil)
	require.ErrorIs(t, err, platform.ErrFunctionNotFound)

	calls := p.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, platform.LatestQualifier, calls[0].Qualifier)
}

func Test_Platform_Faults(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	p := New()
	p.SeedFunction("orders-alice", []byte("code"), platform.Configuration{}, 0, nil)
	p.FailOn(OpUpdateConfiguration, assert.AnError)
	p.OverrideReportedDigest("orders-alice", "tampered")

	require.ErrorIs(t, p.UpdateConfiguration(ctx, "orders-alice", platform.Configuration{}), assert.AnError)
	assert.Equal(t, 1, p.CallCount(OpUpdateConfiguration), "failed calls are still recorded")

	info, err := p.GetFunction(ctx, "orders-alice")
	require.NoError(t, err)
	assert.Equal(t, "tampered", info.CodeDigest)
}
