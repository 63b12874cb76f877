// Package memory provides an in-process implementation of the platform capability surface.
//
// It stores deployment packages, functions, versions and aliases in memory, records every call
// it receives and lets tests inject failures. The CLI uses it for dry runs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/smartcontractkit/beamline/artifact"
	"github.com/smartcontractkit/beamline/platform"
)

// Bucket is the bucket name reported for packages stored in memory.
const Bucket = "memory"

// Op names a platform operation.
type Op string

const (
	OpGetFunction         Op = "GetFunction"
	OpCreateFunction      Op = "CreateFunction"
	OpUpdateCode          Op = "UpdateCode"
	OpUpdateConfiguration Op = "UpdateConfiguration"
	OpWaitReady           Op = "WaitReady"
	OpInvoke              Op = "Invoke"
	OpPublishVersion      Op = "PublishVersion"
	OpGetAliases          Op = "GetAliases"
	OpCreateAlias         Op = "CreateAlias"
	OpUpdateAlias         Op = "UpdateAlias"
	OpPut                 Op = "Put"
)

// Call is a record of one platform call.
type Call struct {
	Op        Op
	Function  string
	Qualifier string
	Alias     string
	Version   platform.Version
}

// FaultFunc is consulted before every call. A non nil error fails the call.
type FaultFunc func(c Call) error

// Snapshot is the code digest and configuration captured by a published version.
type Snapshot struct {
	Digest string
	Config platform.Configuration
}

type function struct {
	info     platform.FunctionInfo
	versions map[platform.Version]Snapshot
	next     int64
	aliases  map[string]platform.Version
	// reported overrides the digest returned by GetFunction.
	reported *string
}

// Platform is an in-memory platform. The zero value is not usable, use New.
type Platform struct {
	mu        sync.Mutex
	functions map[string]*function
	objects   map[platform.CodeLocation][]byte
	statuses  map[string]int
	calls     []Call
	faults    []FaultFunc
}

var _ platform.Platform = (*Platform)(nil)

// New creates an empty Platform.
func New() *Platform {
	return &Platform{
		functions: make(map[string]*function),
		objects:   make(map[platform.CodeLocation][]byte),
		statuses:  make(map[string]int),
	}
}

// InjectFault registers f to be consulted before every call.
func (p *Platform) InjectFault(f FaultFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.faults = append(p.faults, f)
}

// FailOn fails every call of op with err.
func (p *Platform) FailOn(op Op, err error) {
	p.InjectFault(func(c Call) error {
		if c.Op == op {
			return err
		}

		return nil
	})
}

// SetInvokeStatus sets the status code returned when invoking qualifier. An empty qualifier
// addresses $LATEST.
func (p *Platform) SetInvokeStatus(qualifier string, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.statuses[qualifierOrLatest(qualifier)] = status
}

// OverrideReportedDigest makes GetFunction report digest for name regardless of the stored code.
func (p *Platform) OverrideReportedDigest(name, digest string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fn, ok := p.functions[name]; ok {
		fn.reported = &digest
	}
}

// SeedFunction registers an existing function with code, published versions and aliases.
func (p *Platform) SeedFunction(name string, code []byte, cfg platform.Configuration, publish int, aliases map[string]platform.Version) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn := &function{
		info: platform.FunctionInfo{
			Name:       name,
			ARN:        "arn:memory:function:" + name,
			CodeDigest: string(artifact.DigestOf(code)),
			Config:     cfg,
		},
		versions: make(map[platform.Version]Snapshot),
		aliases:  make(map[string]platform.Version),
	}
	for range publish {
		fn.publish()
	}
	for k, v := range aliases {
		fn.aliases[k] = v
	}
	p.functions[name] = fn
}

// Calls returns a copy of the recorded calls.
func (p *Platform) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()

	calls := make([]Call, len(p.calls))
	copy(calls, p.calls)

	return calls
}

// CallCount returns how many times op was called.
func (p *Platform) CallCount(op Op) int {
	var n int
	for _, c := range p.Calls() {
		if c.Op == op {
			n++
		}
	}

	return n
}

// Aliases returns a copy of the alias table for name.
func (p *Platform) Aliases(name string) map[string]platform.Version {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]platform.Version)
	if fn, ok := p.functions[name]; ok {
		for k, v := range fn.aliases {
			out[k] = v
		}
	}

	return out
}

// VersionSnapshot returns what version v of name captured when it was published.
func (p *Platform) VersionSnapshot(name string, v platform.Version) (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn, ok := p.functions[name]
	if !ok {
		return Snapshot{}, false
	}
	snap, ok := fn.versions[v]

	return snap, ok
}

// Put stores the package in memory. It satisfies the artifact store interface.
func (p *Platform) Put(_ context.Context, key string, a *artifact.Artifact) (platform.CodeLocation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(Call{Op: OpPut, Qualifier: key}); err != nil {
		return platform.CodeLocation{}, err
	}

	loc := platform.CodeLocation{Bucket: Bucket, Key: key}
	p.objects[loc] = append([]byte(nil), a.Bytes...)

	return loc, nil
}

// GetFunction implements platform.Platform.
func (p *Platform) GetFunction(_ context.Context, name string) (*platform.FunctionInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(Call{Op: OpGetFunction, Function: name}); err != nil {
		return nil, err
	}

	fn, ok := p.functions[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, platform.ErrFunctionNotFound)
	}

	info := fn.info
	if fn.reported != nil {
		info.CodeDigest = *fn.reported
	}

	return &info, nil
}

// CreateFunction implements platform.Platform.
func (p *Platform) CreateFunction(_ context.Context, spec platform.FunctionSpec) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(Call{Op: OpCreateFunction, Function: spec.Name}); err != nil {
		return "", err
	}
	if _, ok := p.functions[spec.Name]; ok {
		return "", fmt.Errorf("function %s already exists", spec.Name)
	}

	code, ok := p.objects[spec.Code]
	if !ok {
		return "", fmt.Errorf("no such object %s/%s", spec.Code.Bucket, spec.Code.Key)
	}

	arn := "arn:memory:function:" + spec.Name
	p.functions[spec.Name] = &function{
		info: platform.FunctionInfo{
			Name:       spec.Name,
			ARN:        arn,
			CodeDigest: string(artifact.DigestOf(code)),
			Config:     spec.Config,
		},
		versions: make(map[platform.Version]Snapshot),
		aliases:  make(map[string]platform.Version),
	}

	return arn, nil
}

// UpdateCode implements platform.Platform.
func (p *Platform) UpdateCode(_ context.Context, name string, loc platform.CodeLocation) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(Call{Op: OpUpdateCode, Function: name}); err != nil {
		return err
	}

	fn, err := p.lookup(name)
	if err != nil {
		return err
	}
	code, ok := p.objects[loc]
	if !ok {
		return fmt.Errorf("no such object %s/%s", loc.Bucket, loc.Key)
	}
	fn.info.CodeDigest = string(artifact.DigestOf(code))

	return nil
}

// UpdateConfiguration implements platform.Platform.
func (p *Platform) UpdateConfiguration(_ context.Context, name string, cfg platform.Configuration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(Call{Op: OpUpdateConfiguration, Function: name}); err != nil {
		return err
	}

	fn, err := p.lookup(name)
	if err != nil {
		return err
	}
	fn.info.Config = cfg

	return nil
}

// WaitReady implements platform.Platform. Functions in memory are always ready.
func (p *Platform) WaitReady(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(Call{Op: OpWaitReady, Function: name}); err != nil {
		return err
	}
	_, err := p.lookup(name)

	return err
}

// Invoke implements platform.Platform.
func (p *Platform) Invoke(_ context.Context, name, qualifier string, _ []byte) (*platform.Invocation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	qualifier = qualifierOrLatest(qualifier)
	if err := p.record(Call{Op: OpInvoke, Function: name, Qualifier: qualifier}); err != nil {
		return nil, err
	}

	fn, err := p.lookup(name)
	if err != nil {
		return nil, err
	}
	if qualifier != platform.LatestQualifier {
		if _, isAlias := fn.aliases[qualifier]; !isAlias {
			if _, isVersion := fn.versions[platform.Version(qualifier)]; !isVersion {
				return nil, fmt.Errorf("%s:%s: %w", name, qualifier, platform.ErrFunctionNotFound)
			}
		}
	}

	status, ok := p.statuses[qualifier]
	if !ok {
		status = 200
	}

	return &platform.Invocation{StatusCode: status, Body: []byte("null")}, nil
}

// PublishVersion implements platform.Platform.
func (p *Platform) PublishVersion(_ context.Context, name, codeDigest string) (platform.Version, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(Call{Op: OpPublishVersion, Function: name}); err != nil {
		return "", err
	}

	fn, err := p.lookup(name)
	if err != nil {
		return "", err
	}
	if codeDigest != "" && codeDigest != fn.info.CodeDigest {
		return "", fmt.Errorf("code digest %s does not match function code %s", codeDigest, fn.info.CodeDigest)
	}

	return fn.publish(), nil
}

// GetAliases implements platform.Platform.
func (p *Platform) GetAliases(_ context.Context, name string) (map[string]platform.Version, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(Call{Op: OpGetAliases, Function: name}); err != nil {
		return nil, err
	}

	fn, err := p.lookup(name)
	if err != nil {
		return nil, err
	}

	out := make(map[string]platform.Version, len(fn.aliases))
	for k, v := range fn.aliases {
		out[k] = v
	}

	return out, nil
}

// CreateAlias implements platform.Platform.
func (p *Platform) CreateAlias(_ context.Context, name, alias string, v platform.Version) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(Call{Op: OpCreateAlias, Function: name, Alias: alias, Version: v}); err != nil {
		return err
	}

	fn, err := p.lookup(name)
	if err != nil {
		return err
	}
	if _, ok := fn.aliases[alias]; ok {
		return fmt.Errorf("alias %s already exists", alias)
	}
	if _, ok := fn.versions[v]; !ok {
		return fmt.Errorf("version %s of %s does not exist", v, name)
	}
	fn.aliases[alias] = v

	return nil
}

// UpdateAlias implements platform.Platform.
func (p *Platform) UpdateAlias(_ context.Context, name, alias string, v platform.Version) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record(Call{Op: OpUpdateAlias, Function: name, Alias: alias, Version: v}); err != nil {
		return err
	}

	fn, err := p.lookup(name)
	if err != nil {
		return err
	}
	if _, ok := fn.aliases[alias]; !ok {
		return fmt.Errorf("alias %s does not exist", alias)
	}
	if _, ok := fn.versions[v]; !ok {
		return fmt.Errorf("version %s of %s does not exist", v, name)
	}
	fn.aliases[alias] = v

	return nil
}

// record must be called with the lock held.
func (p *Platform) record(c Call) error {
	p.calls = append(p.calls, c)

	var errs []error
	for _, f := range p.faults {
		if err := f(c); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// lookup must be called with the lock held.
func (p *Platform) lookup(name string) (*function, error) {
	fn, ok := p.functions[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, platform.ErrFunctionNotFound)
	}

	return fn, nil
}

func (fn *function) publish() platform.Version {
	fn.next++
	v := platform.Version(strconv.FormatInt(fn.next, 10))
	fn.versions[v] = Snapshot{Digest: fn.info.CodeDigest, Config: fn.info.Config}

	return v
}

func qualifierOrLatest(q string) string {
	if q == "" {
		return platform.LatestQualifier
	}

	return q
}
