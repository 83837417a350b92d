/*
Copyright 2026

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
package warehouse

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/redshiftserverless"
	"github.com/rs/zerolog/log"
)

// Credentials is a short-lived database login issued for one run. It is
// passed explicitly into every connection-opening call so there is no hidden
// issue-before-connect ordering on the client.
type Credentials struct {
	User       string
	Password   string
	Expiration time.Time
}

// CredentialIssuer requests temporary database credentials from Redshift
// Serverless for the configured workgroup and database.
type CredentialIssuer struct {
	workgroup string
	database  string
	region    string
}

func NewCredentialIssuer(workgroup, database, region string) *CredentialIssuer {
	return &CredentialIssuer{workgroup: workgroup, database: database, region: region}
}

// IssueCredentials returns a one-hour login. Failure is fatal to the run.
func (ci *CredentialIssuer) IssueCredentials(ctx context.Context) (*Credentials, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(ci.region))
	if err != nil {
		log.Error().Err(err).Msg("could not load AWS configuration")
		return nil, err
	}

	out, err := redshiftserverless.NewFromConfig(cfg).GetCredentials(ctx, &redshiftserverless.GetCredentialsInput{
		WorkgroupName:   aws.String(ci.workgroup),
		DbName:          aws.String(ci.database),
		DurationSeconds: aws.Int32(3600),
	})
	if err != nil {
		log.Error().Err(err).Str("Workgroup", ci.workgroup).Str("Database", ci.database).Msg("could not generate temporary credentials")
		return nil, err
	}

	creds := &Credentials{
		User:     aws.ToString(out.DbUser),
		Password: aws.ToString(out.DbPassword),
	}
	if out.Expiration != nil {
		creds.Expiration = *out.Expiration
	}
	log.Info().Str("Workgroup", ci.workgroup).Time("Expiration", creds.Expiration).Msg("temporary credentials issued")
	return creds, nil
}
