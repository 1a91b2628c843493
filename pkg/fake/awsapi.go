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

package fake

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	sdk "github.com/nodescaler/nodescaler/pkg/aws"
)

const (
	DefaultAccount = "123456789012"
	DefaultRegion  = "us-west-2"
)

var _ sdk.STSAPI = &STSAPI{}

type STSAPI struct {
	GetCallerIdentityBehavior MockedFunction[sts.GetCallerIdentityInput, sts.GetCallerIdentityOutput]
}

func (s *STSAPI) Reset() {
	s.GetCallerIdentityBehavior.Reset()
}

func (s *STSAPI) GetCallerIdentity(_ context.Context, input *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return s.GetCallerIdentityBehavior.Invoke(input, func(*sts.GetCallerIdentityInput) (*sts.GetCallerIdentityOutput, error) {
		return &sts.GetCallerIdentityOutput{
			Account: aws.String(DefaultAccount),
			Arn:     aws.String("arn:aws:sts::" + DefaultAccount + ":assumed-role/nodescaler/test"),
			UserId:  aws.String("AROAEXAMPLE:test"),
		}, nil
	})
}

var _ sdk.IMDSAPI = &IMDSAPI{}

type IMDSAPI struct {
	GetRegionBehavior MockedFunction[imds.GetRegionInput, imds.GetRegionOutput]
}

func (i *IMDSAPI) Reset() {
	i.GetRegionBehavior.Reset()
}

func (i *IMDSAPI) GetRegion(_ context.Context, input *imds.GetRegionInput, _ ...func(*imds.Options)) (*imds.GetRegionOutput, error) {
	return i.GetRegionBehavior.Invoke(input, func(*imds.GetRegionInput) (*imds.GetRegionOutput, error) {
		return &imds.GetRegionOutput{Region: DefaultRegion}, nil
	})
}
