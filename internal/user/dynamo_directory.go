package user

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoDirectory.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoDirectory stores profiles as items keyed by the numeric attribute "id".
type DynamoDirectory struct {
	client DynamoAPI
	table  string
}

// NewDynamoDirectory creates a DynamoDirectory over table.
func NewDynamoDirectory(client DynamoAPI, table string) *DynamoDirectory {
	return &DynamoDirectory{client: client, table: table}
}

func (d *DynamoDirectory) key(id ID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberN{Value: strconv.FormatInt(int64(id), 10)},
	}
}

// Get fetches the item for id. A missing item yields an empty profile.
func (d *DynamoDirectory) Get(ctx context.Context, id ID) (*Profile, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key:       d.key(id),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb: get profile %d: %w", id, err)
	}

	p := &Profile{}
	if out.Item != nil {
		if err := attributevalue.UnmarshalMap(out.Item, p); err != nil {
			return nil, fmt.Errorf("dynamodb: decode profile %d: %w", id, err)
		}
	}
	p.ID = id
	return p, nil
}

func (d *DynamoDirectory) SetDemographics(ctx context.Context, id ID, gender Gender, ageBand, region string) error {
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.table),
		Key:              d.key(id),
		UpdateExpression: aws.String("SET gender = :g, age_band = :a, #r = :r"),
		ExpressionAttributeNames: map[string]string{
			"#r": "region",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":g": &types.AttributeValueMemberS{Value: string(gender)},
			":a": &types.AttributeValueMemberS{Value: ageBand},
			":r": &types.AttributeValueMemberS{Value: region},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb: update profile %d: %w", id, err)
	}
	return nil
}

func (d *DynamoDirectory) RecordChat(ctx context.Context, id ID) error {
	return d.add(ctx, id, "chats", "points")
}

func (d *DynamoDirectory) RecordRating(ctx context.Context, id ID, kind Rating) error {
	if kind == RatingPositive {
		return d.add(ctx, id, "ratings_positive", "points")
	}
	return d.add(ctx, id, "ratings_negative")
}

// add increments each attribute by one with an atomic ADD update.
func (d *DynamoDirectory) add(ctx context.Context, id ID, attrs ...string) error {
	expr := "ADD "
	for i, a := range attrs {
		if i > 0 {
			expr += ", "
		}
		expr += a + " :one"
	}
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.table),
		Key:              d.key(id),
		UpdateExpression: aws.String(expr),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb: update counters for %d: %w", id, err)
	}
	return nil
}
