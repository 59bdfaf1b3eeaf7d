// Package planner assembles the resource request graph for one
// deployment. Assembly is synchronous and side-effect free: it fails
// fast on an invalid descriptor and otherwise produces a complete DAG
// whose outputs resolve later, during execution.
package planner

import (
	"fmt"
	"strconv"

	"github.com/davidthor/shipctl/pkg/deferred"
	"github.com/davidthor/shipctl/pkg/descriptor"
	"github.com/davidthor/shipctl/pkg/names"
	"github.com/davidthor/shipctl/pkg/plan"
	"github.com/davidthor/shipctl/pkg/taskdef"
)

// subnetCount is the number of public subnets created for a fresh
// network, one per availability zone.
const subnetCount = 2

const executionRolePolicyARN = "arn:aws:iam::aws:policy/service-role/AmazonECSTaskExecutionRolePolicy"

// Config carries the deployment target. Availability zones are passed
// in explicitly so planning itself never talks to the cloud.
type Config struct {
	Region            string
	AvailabilityZones []string
}

// Result exposes the deferred handles a caller composes final outputs
// from. Every field resolves when its producing request completes, or
// rejects when that request (or one of its dependencies) fails.
type Result struct {
	ImageURI        *deferred.Value[string]
	LoadBalancerDNS *deferred.Value[string]
	ClusterName     *deferred.Value[string]
	ServiceName     *deferred.Value[string]
}

// Planner plans deployments for one target region.
type Planner struct {
	cfg Config
}

// New creates a planner for the given target.
func New(cfg Config) *Planner {
	return &Planner{cfg: cfg}
}

// Plan validates the descriptor and assembles the full request graph.
// No request is created when validation fails.
func (p *Planner) Plan(desc *descriptor.Descriptor) (*plan.Graph, *Result, error) {
	desc.ApplyDefaults()
	if err := desc.Validate(); err != nil {
		return nil, nil, err
	}

	dec := Decide(desc)
	app := desc.Name

	b := &builder{
		graph:  plan.NewGraph(app, p.cfg.Region),
		app:    app,
		region: p.cfg.Region,
		owner:  desc.OwnerTag,
	}

	// Network
	var vpcID interface{}
	var subnetIDs *deferred.Value[[]string]
	var networkReqs []*plan.Request

	switch n := dec.Network.(type) {
	case NetworkReused:
		vpcID = n.VPCID
		subnetIDs = deferred.Resolved(n.SubnetIDs)

	case NetworkCreated:
		if len(p.cfg.AvailabilityZones) < subnetCount {
			return nil, nil, fmt.Errorf("need at least %d availability zones in %s, got %d",
				subnetCount, p.cfg.Region, len(p.cfg.AvailabilityZones))
		}

		vpc := b.add(plan.KindNetwork, names.Resource(app, "vpc"), map[string]interface{}{
			"cidrBlock":          "10.0.0.0/16",
			"enableDnsHostnames": true,
			"enableDnsSupport":   true,
		})
		igw := b.add(plan.KindInternetGateway, names.Resource(app, "igw"), map[string]interface{}{
			"vpcId": vpc.Output("id"),
		}, vpc)
		rt := b.add(plan.KindRouteTable, names.Resource(app, "rt"), map[string]interface{}{
			"vpcId":                vpc.Output("id"),
			"gatewayId":            igw.Output("id"),
			"destinationCidrBlock": "0.0.0.0/0",
		}, vpc, igw)

		subnetOutputs := make([]*deferred.Value[string], 0, subnetCount)
		for i := 0; i < subnetCount; i++ {
			subnet := b.add(plan.KindSubnet, names.Indexed(app, "subnet", i+1), map[string]interface{}{
				"vpcId":               vpc.Output("id"),
				"cidrBlock":           fmt.Sprintf("10.0.%d.0/24", i),
				"availabilityZone":    p.cfg.AvailabilityZones[i],
				"mapPublicIpOnLaunch": true,
			}, vpc)
			b.add(plan.KindRouteAssociation, names.Indexed(app, "rta", i+1), map[string]interface{}{
				"subnetId":     subnet.Output("id"),
				"routeTableId": rt.Output("id"),
			}, subnet, rt)
			subnetOutputs = append(subnetOutputs, subnet.Output("id"))
			networkReqs = append(networkReqs, subnet)
		}

		vpcID = vpc.Output("id")
		subnetIDs = deferred.All(subnetOutputs...)
		networkReqs = append(networkReqs, vpc)
	}

	// Security group for both the load balancer and the tasks
	sg := b.add(plan.KindSecurityGroup, names.Resource(app, "sg"), map[string]interface{}{
		"vpcId":       vpcID,
		"ingressPort": desc.ListenPort,
		"description": "service ingress",
	}, networkReqs...)

	cluster := b.add(plan.KindCluster, names.Resource(app, "cluster"), nil)

	// Load balancer, target group, listeners
	lbDeps := append([]*plan.Request{sg}, networkReqs...)
	lb := b.add(plan.KindLoadBalancer, names.Resource(app, "lb"), map[string]interface{}{
		"subnetIds":        subnetIDs,
		"securityGroupIds": []interface{}{sg.Output("id")},
		"internal":         false,
	}, lbDeps...)
	tg := b.add(plan.KindTargetGroup, names.Resource(app, "tg"), map[string]interface{}{
		"vpcId":           vpcID,
		"port":            desc.ListenPort,
		"protocol":        "HTTP",
		"targetType":      "ip",
		"healthCheckPath": desc.HealthCheckPath,
	}, networkReqs...)

	var listeners []*plan.Request
	switch tls := dec.TLS.(type) {
	case TLSEnabled:
		https := b.add(plan.KindListener, names.Resource(app, "https"), map[string]interface{}{
			"loadBalancerArn": lb.Output("arn"),
			"port":            443,
			"protocol":        "HTTPS",
			"certificateArn":  tls.CertificateARN,
			"targetGroupArn":  tg.Output("arn"),
		}, lb, tg)
		redirect := b.add(plan.KindListener, names.Resource(app, "http-redirect"), map[string]interface{}{
			"loadBalancerArn":    lb.Output("arn"),
			"port":               80,
			"protocol":           "HTTP",
			"redirectPort":       443,
			"redirectProtocol":   "HTTPS",
			"redirectStatusCode": "HTTP_301",
		}, lb)
		listeners = []*plan.Request{https, redirect}

	case TLSDisabled:
		http := b.add(plan.KindListener, names.Resource(app, "http"), map[string]interface{}{
			"loadBalancerArn": lb.Output("arn"),
			"port":            80,
			"protocol":        "HTTP",
			"targetGroupArn":  tg.Output("arn"),
		}, lb, tg)
		listeners = []*plan.Request{http}
	}

	// Execution role, with a secrets-access policy only when needed
	role := b.add(plan.KindIamRole, names.Resource(app, "exec-role"), map[string]interface{}{
		"assumeRolePolicyService": "ecs-tasks.amazonaws.com",
		"managedPolicyArns":       []interface{}{executionRolePolicyARN},
	})

	logGroup := b.add(plan.KindLogGroup, names.Resource(app, "logs"), map[string]interface{}{
		"retentionInDays": desc.LogRetentionDays,
	})

	// Image source
	var imageURI *deferred.Value[string]
	taskDeps := []*plan.Request{role, logGroup}

	switch src := dec.Source.(type) {
	case SourceBuild:
		repo := b.add(plan.KindRepository, names.Resource(app, "repo"), map[string]interface{}{
			"forceDelete": true,
		})
		creds := b.add(plan.KindRegistryCredentials, names.Resource(app, "registry-creds"), map[string]interface{}{
			"registryId": repo.Output("registryId"),
		}, repo)
		build := b.add(plan.KindImageBuild, names.Resource(app, "image"), map[string]interface{}{
			"context":       src.Context,
			"repositoryUrl": repo.Output("repositoryUrl"),
			"username":      creds.Output("username"),
			"password":      creds.Output("password"),
			"serverAddress": creds.Output("proxyEndpoint"),
		}, repo, creds)

		imageURI = deferred.Combine2(repo.Output("repositoryUrl"), build.Output("digest"),
			func(url, digest string) string { return url + "@" + digest })
		taskDeps = append(taskDeps, build)

	case SourcePrebuilt:
		imageURI = deferred.Resolved(src.ImageRef)
	}

	// Secrets: literals become managed secrets with a stored version,
	// external references pass through untouched.
	secretNames := make([]string, 0, len(desc.Secrets))
	secretARNs := make([]*deferred.Value[string], 0, len(desc.Secrets))
	for _, s := range desc.Secrets {
		secretNames = append(secretNames, s.Name)
		if s.External() {
			secretARNs = append(secretARNs, deferred.Resolved(s.ValueFrom))
			continue
		}
		secret := b.add(plan.KindSecret, names.Resource(app, "secret-"+names.Sanitize(s.Name)), nil)
		version := b.add(plan.KindSecretVersion, names.Resource(app, "secretv-"+names.Sanitize(s.Name)), map[string]interface{}{
			"secretId":     secret.Output("id"),
			"secretString": s.Value,
		}, secret)
		secretARNs = append(secretARNs, secret.Output("arn"))
		taskDeps = append(taskDeps, version)
	}
	allSecretARNs := deferred.All(secretARNs...)

	if len(desc.Secrets) > 0 {
		policyDeps := []*plan.Request{role}
		for _, req := range b.graph.ByKind(plan.KindSecret) {
			policyDeps = append(policyDeps, req)
		}
		policy := b.add(plan.KindIamPolicy, names.Resource(app, "secrets-access"), map[string]interface{}{
			"roleName":   role.Output("name"),
			"secretArns": allSecretARNs,
		}, policyDeps...)
		taskDeps = append(taskDeps, policy)
	}

	// Task definition with the composed container payload
	containerDefs := taskdef.Compose(
		desc.Env,
		secretNames,
		allSecretARNs,
		imageURI,
		logGroup.Output("name"),
		p.cfg.Region,
		desc.ListenPort,
	)
	td := b.add(plan.KindTaskDefinition, names.Resource(app, "task"), map[string]interface{}{
		"family":                  names.Resource(app, "task"),
		"cpu":                     strconv.Itoa(desc.CPUUnits),
		"memory":                  strconv.Itoa(desc.MemoryMiB),
		"networkMode":             "awsvpc",
		"requiresCompatibilities": []interface{}{"FARGATE"},
		"executionRoleArn":        role.Output("arn"),
		"containerDefinitions":    containerDefs,
	}, taskDeps...)

	// Service waits for the listeners so the load balancer is routable
	// before the first task registers.
	svcDeps := append([]*plan.Request{cluster, td, tg, lb}, listeners...)
	svc := b.add(plan.KindService, names.Resource(app, "svc"), map[string]interface{}{
		"cluster":          cluster.Output("name"),
		"taskDefinition":   td.Output("arn"),
		"desiredCount":     desc.DesiredCount,
		"launchType":       "FARGATE",
		"assignPublicIp":   true,
		"subnetIds":        subnetIDs,
		"securityGroupIds": []interface{}{sg.Output("id")},
		"targetGroupArn":   tg.Output("arn"),
		"containerName":    taskdef.ContainerName,
		"containerPort":    desc.ListenPort,
	}, svcDeps...)

	if desc.Autoscaling.Enabled {
		resourceID := deferred.Combine2(cluster.Output("name"), svc.Output("name"),
			func(c, s string) string { return fmt.Sprintf("service/%s/%s", c, s) })

		target := b.add(plan.KindAutoscalingTarget, names.Resource(app, "scale-target"), map[string]interface{}{
			"minCapacity":       desc.Autoscaling.MinCount,
			"maxCapacity":       desc.Autoscaling.MaxCount,
			"resourceId":        resourceID,
			"scalableDimension": "ecs:service:DesiredCount",
			"serviceNamespace":  "ecs",
		}, svc, cluster)
		b.add(plan.KindAutoscalingPolicy, names.Resource(app, "scale-policy"), map[string]interface{}{
			"resourceId":        resourceID,
			"scalableDimension": "ecs:service:DesiredCount",
			"serviceNamespace":  "ecs",
			"policyType":        "TargetTrackingScaling",
			"metric":            "ECSServiceAverageCPUUtilization",
			"targetValue":       75.0,
		}, target)
	}

	if b.err != nil {
		return nil, nil, b.err
	}

	result := &Result{
		ImageURI:        imageURI,
		LoadBalancerDNS: lb.Output("dnsName"),
		ClusterName:     cluster.Output("name"),
		ServiceName:     svc.Output("name"),
	}
	return b.graph, result, nil
}

// builder accumulates requests and edges, deferring the first error so
// the assembly code stays linear.
type builder struct {
	graph  *plan.Graph
	app    string
	region string
	owner  string
	err    error
}

func (b *builder) add(kind plan.Kind, name string, params map[string]interface{}, deps ...*plan.Request) *plan.Request {
	req := plan.NewRequest(kind, b.app, name)
	for k, v := range params {
		req.SetParam(k, v)
	}
	req.SetParam("region", b.region)
	if b.owner != "" {
		req.SetParam("owner", b.owner)
	}

	if err := b.graph.Add(req); err != nil && b.err == nil {
		b.err = err
	}
	for _, dep := range deps {
		if err := b.graph.AddEdge(req.ID, dep.ID); err != nil && b.err == nil {
			b.err = err
		}
	}
	return req
}
