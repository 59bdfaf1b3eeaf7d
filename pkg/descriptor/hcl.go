package descriptor

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/davidthor/shipctl/pkg/errors"
)

// attrEntry carries an evaluated attribute value together with its
// position in the source file, used to keep declaration order.
type attrEntry struct {
	value      cty.Value
	byteOffset int
}

// parseHCL parses the HCL descriptor form:
//
//	name = "chat-app"
//	port = 8080
//
//	source {
//	  build_context = "../app"
//	}
//
//	env {
//	  MODEL = "gpt-4o"
//	}
func parseHCL(data []byte, sourcePath string) (*Descriptor, error) {
	file, diags := hclsyntax.ParseConfig(data, sourcePath, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, errors.ParseError(sourcePath, fmt.Errorf("%s", diags.Error()))
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, errors.ParseError(sourcePath, fmt.Errorf("unexpected HCL body type"))
	}

	desc := &Descriptor{}

	for attrName, attr := range body.Attributes {
		var err error
		switch attrName {
		case "name":
			desc.Name, err = attrString(attr)
		case "port":
			desc.ListenPort, err = attrInt(attr)
		case "cpu":
			desc.CPUUnits, err = attrInt(attr)
		case "memory":
			desc.MemoryMiB, err = attrInt(attr)
		case "desired_count":
			desc.DesiredCount, err = attrInt(attr)
		case "tls_certificate_arn":
			desc.TLSCertificateRef, err = attrString(attr)
		case "owner":
			desc.OwnerTag, err = attrString(attr)
		case "health_check_path":
			desc.HealthCheckPath, err = attrString(attr)
		case "log_retention_days":
			desc.LogRetentionDays, err = attrInt(attr)
		default:
			err = fmt.Errorf("unsupported attribute %q", attrName)
		}
		if err != nil {
			return nil, errors.ParseError(sourcePath, err)
		}
	}

	for _, block := range body.Blocks {
		var err error
		switch block.Type {
		case "source":
			err = parseSourceBlock(block, desc)
		case "network":
			err = parseNetworkBlock(block, desc)
		case "autoscaling":
			err = parseAutoscalingBlock(block, desc)
		case "env":
			entries, e := orderedBlockAttrs(block)
			if e != nil {
				err = e
				break
			}
			desc.Env = append(desc.Env, entries...)
		case "secrets":
			entries, e := orderedSecretAttrs(block)
			if e != nil {
				err = e
				break
			}
			desc.Secrets = append(desc.Secrets, entries...)
		default:
			err = fmt.Errorf("unsupported block %q", block.Type)
		}
		if err != nil {
			return nil, errors.ParseError(sourcePath, err)
		}
	}

	return desc, nil
}

func parseSourceBlock(block *hclsyntax.Block, desc *Descriptor) error {
	for attrName, attr := range block.Body.Attributes {
		var err error
		switch attrName {
		case "build_context":
			desc.BuildContext, err = attrString(attr)
		case "image":
			desc.ImageRef, err = attrString(attr)
		default:
			err = fmt.Errorf("unsupported source attribute %q", attrName)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func parseNetworkBlock(block *hclsyntax.Block, desc *Descriptor) error {
	network := &Network{}
	for attrName, attr := range block.Body.Attributes {
		switch attrName {
		case "vpc_id":
			v, err := attrString(attr)
			if err != nil {
				return err
			}
			network.VPCID = v
		case "subnet_ids":
			v, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return fmt.Errorf("%s", diags.Error())
			}
			if !v.Type().IsTupleType() && !v.Type().IsListType() {
				return fmt.Errorf("subnet_ids must be a list")
			}
			for _, el := range v.AsValueSlice() {
				s, err := convert.Convert(el, cty.String)
				if err != nil {
					return err
				}
				network.SubnetIDs = append(network.SubnetIDs, s.AsString())
			}
		default:
			return fmt.Errorf("unsupported network attribute %q", attrName)
		}
	}
	desc.Network = network
	return nil
}

func parseAutoscalingBlock(block *hclsyntax.Block, desc *Descriptor) error {
	for attrName, attr := range block.Body.Attributes {
		var err error
		switch attrName {
		case "enabled":
			v, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return fmt.Errorf("%s", diags.Error())
			}
			b, cerr := convert.Convert(v, cty.Bool)
			if cerr != nil {
				return cerr
			}
			desc.Autoscaling.Enabled = b.True()
		case "min":
			desc.Autoscaling.MinCount, err = attrInt(attr)
		case "max":
			desc.Autoscaling.MaxCount, err = attrInt(attr)
		default:
			err = fmt.Errorf("unsupported autoscaling attribute %q", attrName)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// orderedBlockAttrs evaluates a block's attributes and returns them in
// source-file order.
func orderedBlockAttrs(block *hclsyntax.Block) ([]EnvVar, error) {
	entries := make(map[string]attrEntry, len(block.Body.Attributes))
	for attrName, attr := range block.Body.Attributes {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%s", diags.Error())
		}
		s, err := convert.Convert(v, cty.String)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", attrName, err)
		}
		entries[attrName] = attrEntry{value: s, byteOffset: attr.SrcRange.Start.Byte}
	}

	var result []EnvVar
	for _, attrName := range sortedAttrNames(entries) {
		result = append(result, EnvVar{Name: attrName, Value: entries[attrName].value.AsString()})
	}
	return result, nil
}

// orderedSecretAttrs evaluates a secrets block in source-file order. A
// string value is classified by the arn: prefix; an object value sets
// value/value_from explicitly:
//
//	secrets {
//	  SESSION_KEY = "super-secret"
//	  ODD_LITERAL = { value = "arn:prefixed-but-literal" }
//	}
func orderedSecretAttrs(block *hclsyntax.Block) ([]Secret, error) {
	entries := make(map[string]attrEntry, len(block.Body.Attributes))
	for attrName, attr := range block.Body.Attributes {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%s", diags.Error())
		}
		entries[attrName] = attrEntry{value: v, byteOffset: attr.SrcRange.Start.Byte}
	}

	var result []Secret
	for _, attrName := range sortedAttrNames(entries) {
		v := entries[attrName].value
		if v.Type().IsObjectType() || v.Type().IsMapType() {
			s := Secret{Name: attrName}
			for field, fv := range v.AsValueMap() {
				fs, err := convert.Convert(fv, cty.String)
				if err != nil {
					return nil, fmt.Errorf("secret %q field %q: %w", attrName, field, err)
				}
				switch field {
				case "value":
					s.Value = fs.AsString()
				case "value_from":
					s.ValueFrom = fs.AsString()
				default:
					return nil, fmt.Errorf("secret %q: unsupported field %q", attrName, field)
				}
			}
			result = append(result, s)
			continue
		}
		fs, err := convert.Convert(v, cty.String)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", attrName, err)
		}
		result = append(result, classifySecretValue(attrName, fs.AsString()))
	}
	return result, nil
}

func attrString(attr *hclsyntax.Attribute) (string, error) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return "", fmt.Errorf("%s", diags.Error())
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", err
	}
	return s.AsString(), nil
}

func attrInt(attr *hclsyntax.Attribute) (int, error) {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return 0, fmt.Errorf("%s", diags.Error())
	}
	n, err := convert.Convert(v, cty.Number)
	if err != nil {
		return 0, err
	}
	i, _ := n.AsBigFloat().Int64()
	return int(i), nil
}
