// Package executor drives a resource request graph to completion
// against a provisioning engine, issuing independent requests in
// parallel and resolving their deferred outputs as they land.
package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/davidthor/shipctl/pkg/deferred"
	"github.com/davidthor/shipctl/pkg/errors"
	"github.com/davidthor/shipctl/pkg/plan"
	"github.com/davidthor/shipctl/pkg/provision"
)

// Options configures the executor.
type Options struct {
	// Parallelism is the max number of concurrent requests
	Parallelism int

	// Output writer for progress
	Output io.Writer
}

// DefaultOptions returns default executor options.
func DefaultOptions() Options {
	return Options{Parallelism: 10}
}

// RequestResult contains the result of executing a single request.
type RequestResult struct {
	RequestID string
	State     plan.State
	Duration  time.Duration
	Error     error
	Outputs   map[string]string
}

// Result contains the results of one execution.
type Result struct {
	Success        bool
	Duration       time.Duration
	Created        int
	Failed         int
	Skipped        int
	Errors         []error
	RequestResults map[string]*RequestResult
}

// Executor runs request graphs.
type Executor struct {
	engine  provision.Engine
	options Options
}

// New creates a new executor.
func New(engine provision.Engine, options Options) *Executor {
	if options.Parallelism <= 0 {
		options.Parallelism = 10
	}
	return &Executor{engine: engine, options: options}
}

// Execute drives the graph to completion. A failed request fails its
// transitive dependents without stopping independent branches. The
// returned error is reserved for executor-level problems; per-request
// failures are reported through the Result.
func (e *Executor) Execute(ctx context.Context, g *plan.Graph) (*Result, error) {
	startTime := time.Now()

	result := &Result{
		Success:        true,
		RequestResults: make(map[string]*RequestResult),
	}

	if g.Len() == 0 {
		result.Duration = time.Since(startTime)
		return result, nil
	}

	if _, err := g.TopologicalSort(); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	sem := make(chan struct{}, e.options.Parallelism)
	var wg sync.WaitGroup

	pending := make(map[string]*plan.Request)
	for _, req := range g.List() {
		pending[req.ID] = req
	}

	completed := make(map[string]bool)
	failed := make(map[string]bool)

	for len(pending) > 0 {
		if ctx.Err() != nil {
			break
		}

		// Find ready requests, skipping anything downstream of a failure
		var ready []*plan.Request
		skipped := 0
		for id, req := range pending {
			isReady := true
			for _, depID := range req.DependsOn {
				if failed[depID] {
					skipErr := errors.Provisioning(depID, fmt.Errorf("dependency failed"))
					req.State = plan.StateSkipped
					for _, d := range req.Outputs {
						_ = d.Reject(skipErr)
					}

					mu.Lock()
					result.RequestResults[id] = &RequestResult{
						RequestID: id,
						State:     plan.StateSkipped,
						Error:     skipErr,
					}
					result.Skipped++
					result.Success = false
					mu.Unlock()

					delete(pending, id)
					failed[id] = true
					skipped++
					isReady = false
					e.progress("- skipped %s (dependency failed)\n", id)
					break
				}
				if !completed[depID] {
					isReady = false
					break
				}
			}

			if isReady {
				ready = append(ready, req)
			}
		}

		// A pass that only cascaded skips still made progress; only bail
		// when nothing can move at all.
		if len(ready) == 0 && skipped == 0 && len(pending) > 0 {
			break
		}

		for _, req := range ready {
			delete(pending, req.ID)

			wg.Add(1)
			sem <- struct{}{}

			go func(r *plan.Request) {
				defer wg.Done()
				defer func() { <-sem }()

				reqResult := e.executeRequest(ctx, r)

				mu.Lock()
				result.RequestResults[r.ID] = reqResult
				if reqResult.Error == nil {
					result.Created++
					completed[r.ID] = true
				} else {
					result.Failed++
					result.Success = false
					result.Errors = append(result.Errors, reqResult.Error)
					failed[r.ID] = true
				}
				mu.Unlock()
			}(req)
		}

		wg.Wait()
	}

	if err := ctx.Err(); err != nil {
		for id, req := range pending {
			req.Fail(err)
			result.RequestResults[id] = &RequestResult{
				RequestID: id,
				State:     plan.StateFailed,
				Error:     err,
			}
			result.Failed++
		}
		result.Success = false
		result.Errors = append(result.Errors, err)
	}

	result.Duration = time.Since(startTime)
	return result, nil
}

func (e *Executor) executeRequest(ctx context.Context, req *plan.Request) *RequestResult {
	startTime := time.Now()
	req.State = plan.StateRunning
	e.progress("~ creating %s\n", req.ID)

	outputs, err := e.issue(ctx, req)
	if err != nil {
		if !errors.IsCode(err, errors.ErrCodeCredentialExchange) {
			err = errors.Provisioning(req.ID, err)
		}
		req.Fail(err)
		e.progress("x failed %s: %v\n", req.ID, err)
		return &RequestResult{
			RequestID: req.ID,
			State:     plan.StateFailed,
			Duration:  time.Since(startTime),
			Error:     err,
		}
	}

	// Resolve declared outputs. A declared output the engine did not
	// produce would leave consumers blocked, so it rejects instead.
	for name, d := range req.Outputs {
		val, ok := outputs[name]
		if !ok {
			missing := errors.Provisioning(req.ID, fmt.Errorf("engine returned no %q output", name))
			_ = d.Reject(missing)
			continue
		}
		_ = d.Resolve(val)
	}

	req.State = plan.StateCompleted
	e.progress("+ created %s\n", req.ID)
	return &RequestResult{
		RequestID: req.ID,
		State:     plan.StateCompleted,
		Duration:  time.Since(startTime),
		Outputs:   outputs,
	}
}

// issue resolves the request's parameters and calls the engine. The
// registry credential exchange is handled here rather than in engines so
// a malformed token always classifies the same way.
func (e *Executor) issue(ctx context.Context, req *plan.Request) (map[string]string, error) {
	params, err := resolveParams(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	if req.Kind == plan.KindRegistryCredentials {
		registryID, _ := params["registryId"].(string)
		return e.exchangeCredentials(ctx, registryID)
	}

	return e.engine.CreateResource(ctx, req.Kind, req.Name, params)
}

func (e *Executor) exchangeCredentials(ctx context.Context, registryID string) (map[string]string, error) {
	creds, err := e.engine.GetCredentials(ctx, registryID)
	if err != nil {
		return nil, err
	}

	decoded, err := base64.StdEncoding.DecodeString(creds.AuthorizationToken)
	if err != nil {
		return nil, errors.CredentialExchange(fmt.Sprintf("authorization token is not base64: %v", err))
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 2 {
		return nil, errors.CredentialExchange(
			fmt.Sprintf("authorization token must decode to user:password, got %d parts", len(parts)))
	}

	return map[string]string{
		"username":      parts[0],
		"password":      parts[1],
		"proxyEndpoint": creds.ProxyEndpoint,
	}, nil
}

// resolveParams walks the parameter tree and replaces deferred values
// with their settled results. Dependencies have completed by the time a
// request is issued, so waits here only block on derived values still
// running their composition callbacks.
func resolveParams(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		rv, err := resolveValue(ctx, v)
		if err != nil {
			return nil, err
		}
		out[k] = rv
	}
	return out, nil
}

func resolveValue(ctx context.Context, v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case *deferred.Value[string]:
		return val.Wait(ctx)
	case *deferred.Value[[]string]:
		return val.Wait(ctx)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			rv, err := resolveValue(ctx, elem)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	case map[string]interface{}:
		return resolveParams(ctx, val)
	default:
		return v, nil
	}
}

func (e *Executor) progress(format string, args ...interface{}) {
	if e.options.Output == nil {
		return
	}
	fmt.Fprintf(e.options.Output, format, args...)
}
