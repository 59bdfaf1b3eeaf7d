package planner

import "github.com/davidthor/shipctl/pkg/descriptor"

// NetworkDecision is the per-deployment choice between binding to an
// existing network and creating a fresh one.
type NetworkDecision interface {
	isNetworkDecision()
}

// NetworkReused binds the deployment to an existing VPC and subnets.
type NetworkReused struct {
	VPCID     string
	SubnetIDs []string
}

// NetworkCreated provisions a dedicated network for the deployment.
type NetworkCreated struct{}

func (NetworkReused) isNetworkDecision()  {}
func (NetworkCreated) isNetworkDecision() {}

// TLSDecision is the choice between terminating TLS at the load
// balancer and serving plain HTTP.
type TLSDecision interface {
	isTLSDecision()
}

// TLSEnabled terminates TLS with the referenced certificate and
// redirects plain HTTP to HTTPS.
type TLSEnabled struct {
	CertificateARN string
}

// TLSDisabled serves plain HTTP only.
type TLSDisabled struct{}

func (TLSEnabled) isTLSDecision()  {}
func (TLSDisabled) isTLSDecision() {}

// SourceDecision is the choice between building an image from source
// and deploying a prebuilt reference.
type SourceDecision interface {
	isSourceDecision()
}

// SourceBuild builds and pushes an image from a build context.
type SourceBuild struct {
	Context string
}

// SourcePrebuilt deploys an existing image reference as-is.
type SourcePrebuilt struct {
	ImageRef string
}

func (SourceBuild) isSourceDecision()    {}
func (SourcePrebuilt) isSourceDecision() {}

// Decisions captures every branch the planner takes for a descriptor.
// Each concern is decided exactly once, up front, so the graph assembly
// below never re-inspects the descriptor for the same question.
type Decisions struct {
	Network NetworkDecision
	TLS     TLSDecision
	Source  SourceDecision
}

// Decide derives the planning decisions from a validated descriptor.
func Decide(d *descriptor.Descriptor) Decisions {
	var dec Decisions

	if d.Network.Complete() {
		dec.Network = NetworkReused{VPCID: d.Network.VPCID, SubnetIDs: d.Network.SubnetIDs}
	} else {
		dec.Network = NetworkCreated{}
	}

	if d.HasTLS() {
		dec.TLS = TLSEnabled{CertificateARN: d.TLSCertificateRef}
	} else {
		dec.TLS = TLSDisabled{}
	}

	if d.BuildContext != "" {
		dec.Source = SourceBuild{Context: d.BuildContext}
	} else {
		dec.Source = SourcePrebuilt{ImageRef: d.ImageRef}
	}

	return dec
}
