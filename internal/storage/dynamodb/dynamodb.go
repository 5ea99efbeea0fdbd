package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/cm8me/shortener/internal/model"
	"github.com/cm8me/shortener/internal/storage"
)

const tableReadyTimeout = 2 * time.Minute

// API is the subset of the DynamoDB client used by Storage.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Options configures the DynamoDB connection.
type Options struct {
	Region   string
	Table    string
	Endpoint string
}

// Item is a slug mapping as stored in the table.
type Item struct {
	ID          string `dynamodbav:"id"`
	RedirectURL string `dynamodbav:"redirect_url"`
	CreatedAt   int64  `dynamodbav:"created_at"`
}

// Storage is a KVStore on a DynamoDB table keyed by "id".
type Storage struct {
	api   API
	table string
	now   func() time.Time
}

// NewStorage loads AWS configuration, connects and creates the table when missing.
// A custom endpoint (e.g. DynamoDB Local) is used with static dummy credentials.
func NewStorage(ctx context.Context, opts Options) (*Storage, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("dummy", "dummy", ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	if opts.Endpoint != "" {
		log.Info().Str("endpoint", opts.Endpoint).Msg("Using custom DynamoDB endpoint")
	}

	s := NewWithAPI(client, opts.Table)
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// NewWithAPI wraps an existing client without touching the table.
func NewWithAPI(api API, table string) *Storage {
	return &Storage{
		api:   api,
		table: table,
		now:   time.Now,
	}
}

func (s *Storage) ensureTable(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err == nil {
		log.Debug().Str("table", s.table).Msg("Connected to DynamoDB table")
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table: %w", err)
	}

	log.Info().Str("table", s.table).Msg("Table doesn't exist, creating")

	_, err = s.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.api)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)}, tableReadyTimeout); err != nil {
		return fmt.Errorf("table did not become active: %w", err)
	}

	return nil
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	result, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       itemKey(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get item: %w", err)
	}

	if result.Item == nil {
		return "", storage.ErrNotFound
	}

	var item Item
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return "", fmt.Errorf("failed to unmarshal item: %w", err)
	}

	return item.RedirectURL, nil
}

// PutIfAbsent issues a conditional put that fails when "id" already exists.
func (s *Storage) PutIfAbsent(ctx context.Context, key, value string) error {
	av, err := attributevalue.MarshalMap(Item{
		ID:          key,
		RedirectURL: value,
		CreatedAt:   s.now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("id"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build condition expression: %w", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.table),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return storage.ErrKeyExists
		}
		return fmt.Errorf("failed to put item: %w", err)
	}

	return nil
}

// Put upserts the URL and keeps the original creation time.
func (s *Storage) Put(ctx context.Context, key, value string) error {
	update := expression.Set(expression.Name("redirect_url"), expression.Value(value)).
		Set(expression.Name("created_at"),
			expression.IfNotExists(expression.Name("created_at"), expression.Value(s.now().Unix())))

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("failed to build update expression: %w", err)
	}

	_, err = s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       itemKey(key),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	return nil
}

// List is a single Scan page. The cursor wraps LastEvaluatedKey.
func (s *Storage) List(ctx context.Context, opts storage.ListOptions) (model.ListPage, error) {
	after, err := storage.DecodeCursor(opts.Cursor)
	if err != nil {
		return model.ListPage{}, err
	}

	input := &dynamodb.ScanInput{
		TableName: aws.String(s.table),
		Limit:     aws.Int32(int32(opts.EffectiveLimit())),
	}
	if after != "" {
		input.ExclusiveStartKey = itemKey(after)
	}

	result, err := s.api.Scan(ctx, input)
	if err != nil {
		return model.ListPage{}, fmt.Errorf("failed to scan table: %w", err)
	}

	var items []Item
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return model.ListPage{}, fmt.Errorf("failed to unmarshal items: %w", err)
	}

	page := model.ListPage{Keys: make([]model.KeyInfo, 0, len(items))}
	for _, item := range items {
		page.Keys = append(page.Keys, model.KeyInfo{
			Name:     item.ID,
			Metadata: map[string]string{storage.MetadataCreatedAt: strconv.FormatInt(item.CreatedAt, 10)},
		})
	}

	if len(result.LastEvaluatedKey) == 0 {
		page.ListComplete = true
		return page, nil
	}

	var last Item
	if err := attributevalue.UnmarshalMap(result.LastEvaluatedKey, &last); err != nil {
		return model.ListPage{}, fmt.Errorf("failed to unmarshal last key: %w", err)
	}
	page.Cursor = storage.EncodeCursor(last.ID)

	return page, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	return err
}

func itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: key},
	}
}
