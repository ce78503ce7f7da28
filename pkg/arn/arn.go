package arn

import (
	"fmt"
	"strings"
)

// ARN identifies a single provider resource, e.g.
// arn:aws:s3:::my-bucket or arn:aws:kms:eu-west-1:111122223333:key/abc.
type ARN struct {
	Partition string
	Service   string
	Region    string
	Account   string
	Resource  string
}

// Parse splits an ARN string into its components.
func Parse(s string) (ARN, error) {
	parts := strings.SplitN(s, ":", 6)
	if len(parts) != 6 || parts[0] != "arn" {
		return ARN{}, fmt.Errorf("invalid ARN %q", s)
	}
	return ARN{
		Partition: parts[1],
		Service:   parts[2],
		Region:    parts[3],
		Account:   parts[4],
		Resource:  parts[5],
	}, nil
}

// MustParse is Parse for trusted static input; it panics on malformed ARNs.
func MustParse(s string) ARN {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Build assembles an ARN from its components.
func Build(partition, service, region, account, resource string) ARN {
	return ARN{
		Partition: partition,
		Service:   service,
		Region:    region,
		Account:   account,
		Resource:  resource,
	}
}

func (a ARN) String() string {
	return strings.Join([]string{"arn", a.Partition, a.Service, a.Region, a.Account, a.Resource}, ":")
}

// IsZero reports whether the ARN is empty.
func (a ARN) IsZero() bool {
	return a == ARN{}
}

// Identifier returns the trailing name of the resource component,
// stripping a type prefix such as "key/" or "topic/" when present.
func (a ARN) Identifier() string {
	if idx := strings.LastIndexAny(a.Resource, "/:"); idx >= 0 {
		return a.Resource[idx+1:]
	}
	return a.Resource
}

// IAMRoot returns the root principal ARN for an account, used when
// granting a whole account access in a policy statement.
func IAMRoot(partition, accountID string) string {
	return fmt.Sprintf("arn:%s:iam::%s:root", partition, accountID)
}
