/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package operator

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	prometheusv2 "github.com/jonathan-innis/aws-sdk-go-prometheus/v2"
	"sigs.k8s.io/controller-runtime/pkg/log"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	sdk "github.com/nodescaler/nodescaler/pkg/aws"
	awserrors "github.com/nodescaler/nodescaler/pkg/errors"
)

// NewEKSAPI loads the default AWS configuration, discovers the region from IMDS when it is not configured, and checks
// that credentials work before any node group is touched.
func NewEKSAPI(ctx context.Context) (sdk.EKSAPI, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRetryMaxAttempts(5),
		config.WithAppID(fmt.Sprintf("%s-%s", appName, Version)),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config, %w", err)
	}
	if cfg.Region == "" {
		log.FromContext(ctx).V(1).Info("retrieving region from IMDS")
		region, err := ResolveRegion(ctx, imds.NewFromConfig(cfg))
		if err != nil {
			return nil, err
		}
		cfg.Region = region
	}
	// Client-side API call latency and error counts land on the same registry as the controller's own metrics
	cfg = prometheusv2.WithPrometheusMetrics(cfg, crmetrics.Registry)
	log.FromContext(ctx).WithValues("region", cfg.Region).V(1).Info("discovered region")
	if err := CheckAWSConnectivity(ctx, sts.NewFromConfig(cfg)); err != nil {
		return nil, err
	}
	return eks.NewFromConfig(cfg), nil
}

func ResolveRegion(ctx context.Context, api sdk.IMDSAPI) (string, error) {
	out, err := api.GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return "", fmt.Errorf("getting region from metadata server, %w", err)
	}
	if out.Region == "" {
		return "", fmt.Errorf("metadata server returned an empty region")
	}
	return out.Region, nil
}

// CheckAWSConnectivity makes a GetCallerIdentity call. If it fails, we provide an early indicator that credentials
// or network access to AWS are broken.
func CheckAWSConnectivity(ctx context.Context, api sdk.STSAPI) error {
	out, err := api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		if awserrors.IsAccessDenied(err) {
			return fmt.Errorf("aws credentials were rejected, %w", err)
		}
		return fmt.Errorf("checking aws connectivity, %w", err)
	}
	log.FromContext(ctx).WithValues("account", aws.ToString(out.Account), "arn", aws.ToString(out.Arn)).V(1).Info("discovered aws identity")
	return nil
}
