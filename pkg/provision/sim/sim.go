// Package sim provides an in-memory provisioning engine used by tests
// and local dry runs. Resource attributes are fabricated but shaped like
// the real thing, so everything downstream of the engine exercises the
// same code paths.
package sim

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/davidthor/shipctl/pkg/plan"
	"github.com/davidthor/shipctl/pkg/provision"
)

const accountID = "123456789012"

// Engine is an in-memory provision.Engine.
type Engine struct {
	mu sync.Mutex

	// Issued records every created resource in issuance order.
	issued []Issued

	// failures maps request names to injected errors.
	failures map[string]error

	// badCredentials makes GetCredentials return an undecodable token.
	badCredentials bool
}

// Issued records one CreateResource call.
type Issued struct {
	Kind   plan.Kind
	Name   string
	Params map[string]interface{}
}

// NewEngine creates a new simulated engine.
func NewEngine() *Engine {
	return &Engine{failures: make(map[string]error)}
}

// FailOn injects a failure for the resource with the given name.
func (e *Engine) FailOn(name string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[name] = err
}

// WithBadCredentials makes the engine return a token that does not decode
// into user:password form.
func (e *Engine) WithBadCredentials() *Engine {
	e.badCredentials = true
	return e
}

// IssuedNames returns the names of all created resources in issuance
// order.
func (e *Engine) IssuedNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, len(e.issued))
	for i, rec := range e.issued {
		names[i] = rec.Name
	}
	return names
}

// IssuedFor returns the record for a resource name, if it was created.
func (e *Engine) IssuedFor(name string) (Issued, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rec := range e.issued {
		if rec.Name == name {
			return rec, true
		}
	}
	return Issued{}, false
}

// CreateResource fabricates output attributes for the requested kind.
func (e *Engine) CreateResource(ctx context.Context, kind plan.Kind, name string, params map[string]interface{}) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if err, ok := e.failures[name]; ok {
		e.mu.Unlock()
		return nil, err
	}
	e.issued = append(e.issued, Issued{Kind: kind, Name: name, Params: params})
	region := "us-west-2"
	e.mu.Unlock()

	if r, ok := params["region"].(string); ok && r != "" {
		region = r
	}

	id := shortID()

	switch kind {
	case plan.KindNetwork:
		return map[string]string{"id": "vpc-" + id}, nil
	case plan.KindSubnet:
		return map[string]string{"id": "subnet-" + id}, nil
	case plan.KindInternetGateway:
		return map[string]string{"id": "igw-" + id}, nil
	case plan.KindRouteTable:
		return map[string]string{"id": "rtb-" + id}, nil
	case plan.KindRouteAssociation:
		return map[string]string{"id": "rtbassoc-" + id}, nil
	case plan.KindSecurityGroup:
		return map[string]string{"id": "sg-" + id}, nil
	case plan.KindCluster:
		return map[string]string{
			"name": name,
			"arn":  fmt.Sprintf("arn:aws:ecs:%s:%s:cluster/%s", region, accountID, name),
		}, nil
	case plan.KindLoadBalancer:
		return map[string]string{
			"arn":     fmt.Sprintf("arn:aws:elasticloadbalancing:%s:%s:loadbalancer/app/%s/%s", region, accountID, name, id),
			"dnsName": fmt.Sprintf("%s-%s.%s.elb.example.com", name, id, region),
		}, nil
	case plan.KindTargetGroup:
		return map[string]string{
			"arn": fmt.Sprintf("arn:aws:elasticloadbalancing:%s:%s:targetgroup/%s/%s", region, accountID, name, id),
		}, nil
	case plan.KindListener:
		return map[string]string{
			"arn": fmt.Sprintf("arn:aws:elasticloadbalancing:%s:%s:listener/app/%s/%s", region, accountID, name, id),
		}, nil
	case plan.KindIamRole:
		return map[string]string{
			"name": name,
			"arn":  fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, name),
		}, nil
	case plan.KindIamPolicy:
		return map[string]string{
			"arn": fmt.Sprintf("arn:aws:iam::%s:policy/%s", accountID, name),
		}, nil
	case plan.KindLogGroup:
		return map[string]string{"name": "/ecs/" + name}, nil
	case plan.KindRepository:
		return map[string]string{
			"registryId":    accountID,
			"repositoryUrl": fmt.Sprintf("%s.dkr.ecr.%s.example.com/%s", accountID, region, name),
		}, nil
	case plan.KindImageBuild:
		return map[string]string{"digest": "sha256:" + strings.Repeat(id, 4)}, nil
	case plan.KindSecret:
		return map[string]string{
			"id":  name + "-" + id,
			"arn": fmt.Sprintf("arn:aws:secretsmanager:%s:%s:secret:%s-%s", region, accountID, name, id),
		}, nil
	case plan.KindSecretVersion:
		return map[string]string{"versionId": id}, nil
	case plan.KindTaskDefinition:
		return map[string]string{
			"arn": fmt.Sprintf("arn:aws:ecs:%s:%s:task-definition/%s:1", region, accountID, name),
		}, nil
	case plan.KindService:
		return map[string]string{
			"name": name,
			"id":   fmt.Sprintf("arn:aws:ecs:%s:%s:service/%s", region, accountID, name),
		}, nil
	case plan.KindAutoscalingTarget:
		return map[string]string{"id": "ast-" + id}, nil
	case plan.KindAutoscalingPolicy:
		return map[string]string{"arn": fmt.Sprintf("arn:aws:autoscaling:%s:%s:scalingPolicy:%s", region, accountID, id)}, nil
	default:
		return nil, fmt.Errorf("unsupported resource kind %q", kind)
	}
}

// GetCredentials returns simulated registry push credentials.
func (e *Engine) GetCredentials(ctx context.Context, registryID string) (*provision.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	token := base64.StdEncoding.EncodeToString([]byte("AWS:sim-password-" + registryID))
	if e.badCredentials {
		token = base64.StdEncoding.EncodeToString([]byte("not-a-pair"))
	}

	return &provision.Credentials{
		ProxyEndpoint:      fmt.Sprintf("https://%s.dkr.ecr.us-west-2.example.com", registryID),
		AuthorizationToken: token,
	}, nil
}

// GetAvailabilityZones returns three fabricated zones for the region.
func (e *Engine) GetAvailabilityZones(ctx context.Context, region string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []string{region + "a", region + "b", region + "c"}, nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
