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

// Package archive writes raw API payloads to object storage as immutable
// audit artifacts. The bucket is pre-provisioned; nothing here reads, lists,
// or deletes objects.
package archive

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Store uploads content as the body of the object named key.
type Store interface {
	Upload(ctx context.Context, content, key string) error
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes objects into a fixed S3 bucket.
type S3Store struct {
	bucket string
	api    putObjectAPI
}

func NewS3Store(ctx context.Context, bucket string) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Error().Err(err).Msg("could not load AWS configuration")
		return nil, err
	}
	return &S3Store{bucket: bucket, api: s3.NewFromConfig(cfg)}, nil
}

// Upload writes content under key. Failures are logged and returned to the
// caller; there is no retry.
func (s *S3Store) Upload(ctx context.Context, content, key string) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(content),
	})
	if err != nil {
		log.Error().Err(err).Str("Bucket", s.bucket).Str("Key", key).Msg("failed to upload to S3")
		return err
	}
	log.Info().Str("Bucket", s.bucket).Str("Key", key).Msg("uploaded raw payload")
	return nil
}
