// Package bedrock invokes the Nova Canvas model on Amazon Bedrock with
// credentials issued by the broker.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/sj-versent/demo-aws-summit-2025/internal/broker"
	"github.com/sj-versent/demo-aws-summit-2025/internal/generation"
)

const contentTypeJSON = "application/json"

var _ generation.ImageModel = (*Client)(nil)

// InvokeModelAPI is the subset of the Bedrock runtime client used here.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type Client struct {
	region  string
	modelID string
	newAPI  func(aws.Config) InvokeModelAPI
}

func NewClient(region, modelID string) *Client {
	return NewClientWithAPI(region, modelID, func(cfg aws.Config) InvokeModelAPI {
		return bedrockruntime.NewFromConfig(cfg)
	})
}

func NewClientWithAPI(region, modelID string, newAPI func(aws.Config) InvokeModelAPI) *Client {
	return &Client{region: region, modelID: modelID, newAPI: newAPI}
}

type invokeResponse struct {
	Images []string `json:"images"`
	Error  string   `json:"error"`
}

// Invoke sends payload to the model using cred and returns the base64 images.
func (c *Client) Invoke(ctx context.Context, cred broker.ScopedCredential, payload generation.Payload) ([]string, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(c.region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cred.AccessKeyID,
			cred.SecretAccessKey,
			cred.SessionToken,
		)),
		awsconfig.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	out, err := c.newAPI(cfg).InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        body,
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
	})
	if err != nil {
		return nil, err
	}

	var resp invokeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return resp.Images, nil
}
