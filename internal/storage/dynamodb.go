package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/streamvault/ingest/pkg/models"
)

// AssetSink is the persistence boundary for committed video assets.
// Commit must be called at most once per job, only after every artifact is
// durably stored.
type AssetSink interface {
	Commit(ctx context.Context, asset *models.VideoAsset) (string, error)
}

// AssetRepository stores video assets in DynamoDB.
type AssetRepository struct {
	client    *dynamodb.Client
	tableName string
}

// NewAssetRepository creates an AssetRepository from an existing client.
func NewAssetRepository(client *dynamodb.Client, tableName string) (*AssetRepository, error) {
	if tableName == "" {
		return nil, errors.New("DynamoDB table name is required")
	}
	return &AssetRepository{
		client:    client,
		tableName: tableName,
	}, nil
}

// Commit persists the asset exactly once. The conditional put refuses to
// overwrite an existing record, so a duplicate commit surfaces as
// ErrAssetExists instead of silently rewriting history.
func (r *AssetRepository) Commit(ctx context.Context, asset *models.VideoAsset) (string, error) {
	assetID := asset.AssetID
	if assetID == "" {
		assetID = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339)

	record := *asset
	record.AssetID = assetID
	record.PK = fmt.Sprintf("ASSET#%s", assetID)
	record.SK = "METADATA"
	record.GSI1PK = "ALL_ASSETS"
	record.GSI1SK = fmt.Sprintf("%s#%s", now, assetID)
	if record.CreatedAt == "" {
		record.CreatedAt = now
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal asset: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return "", fmt.Errorf("%w: %s", models.ErrAssetExists, assetID)
		}
		return "", fmt.Errorf("%w: %v", models.ErrCommitFailed, err)
	}

	return assetID, nil
}

// GetAsset retrieves a committed asset by ID.
func (r *AssetRepository) GetAsset(ctx context.Context, assetID string) (*models.VideoAsset, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("ASSET#%s", assetID)},
			"sk": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("asset not found: %s", assetID)
	}

	var asset models.VideoAsset
	if err := attributevalue.UnmarshalMap(result.Item, &asset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal asset: %w", err)
	}

	return &asset, nil
}

// ListAssets retrieves committed assets in reverse chronological order.
func (r *AssetRepository) ListAssets(ctx context.Context, limit int32, startKey map[string]types.AttributeValue) ([]models.VideoAsset, map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "ALL_ASSETS"},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(limit),
	}

	if startKey != nil {
		input.ExclusiveStartKey = startKey
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list assets: %w", err)
	}

	var assets []models.VideoAsset
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &assets); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal assets: %w", err)
	}

	return assets, result.LastEvaluatedKey, nil
}
