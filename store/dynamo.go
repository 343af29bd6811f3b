package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/AnTengye/auctionhub/backend/config"
	"github.com/AnTengye/auctionhub/backend/model"
)

// DynamoAPI is the subset of the DynamoDB client the store needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore keeps properties in a DynamoDB table keyed by "id".
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

// propertyItem is the DynamoDB shape of a property; decimals travel as strings.
type propertyItem struct {
	ID              string   `dynamodbav:"id"`
	Name            string   `dynamodbav:"name"`
	Type            string   `dynamodbav:"type"`
	Category        string   `dynamodbav:"category,omitempty"`
	Location        string   `dynamodbav:"location"`
	Town            string   `dynamodbav:"town,omitempty"`
	City            string   `dynamodbav:"city,omitempty"`
	NearestBranch   string   `dynamodbav:"nearest_branch,omitempty"`
	State           string   `dynamodbav:"state"`
	Address         string   `dynamodbav:"address,omitempty"`
	ReservePrice    string   `dynamodbav:"reserve_price"`
	EMD             string   `dynamodbav:"emd"`
	Area            string   `dynamodbav:"area,omitempty"`
	AuctionDate     string   `dynamodbav:"auction_date"`
	PublicationDate string   `dynamodbav:"publication_date,omitempty"`
	ApplicationDate string   `dynamodbav:"application_date,omitempty"`
	BorrowerName    string   `dynamodbav:"borrower_name,omitempty"`
	AgentContact    string   `dynamodbav:"agent_contact,omitempty"`
	Description     string   `dynamodbav:"description,omitempty"`
	Note            string   `dynamodbav:"note,omitempty"`
	Images          []string `dynamodbav:"images"`
	Status          string   `dynamodbav:"status"`
	CreatedAt       string   `dynamodbav:"created_at"`
}

func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

// NewDynamoStoreFromConfig loads AWS credentials from the default chain.
func NewDynamoStoreFromConfig(ctx context.Context, cfg *config.StoreConfig) (*DynamoStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.Table), nil
}

func toItem(p *model.Property) propertyItem {
	item := propertyItem{
		ID:              p.ID,
		Name:            p.Name,
		Type:            p.Type,
		Category:        p.Category,
		Location:        p.Location,
		Town:            p.Town,
		City:            p.City,
		NearestBranch:   p.NearestBranch,
		State:           p.State,
		Address:         p.Address,
		ReservePrice:    p.ReservePrice.String(),
		EMD:             p.EMD.String(),
		AuctionDate:     p.AuctionDate,
		PublicationDate: p.PublicationDate,
		ApplicationDate: p.ApplicationDate,
		BorrowerName:    p.BorrowerName,
		AgentContact:    p.AgentContact,
		Description:     p.Description,
		Note:            p.Note,
		Images:          p.Images,
		Status:          p.Status,
		CreatedAt:       p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if p.Area != nil {
		item.Area = p.Area.String()
	}
	return item
}

func fromItem(item propertyItem) *model.Property {
	p := &model.Property{
		ID:              item.ID,
		Name:            item.Name,
		Type:            item.Type,
		Category:        item.Category,
		Location:        item.Location,
		Town:            item.Town,
		City:            item.City,
		NearestBranch:   item.NearestBranch,
		State:           item.State,
		Address:         item.Address,
		AuctionDate:     item.AuctionDate,
		PublicationDate: item.PublicationDate,
		ApplicationDate: item.ApplicationDate,
		BorrowerName:    item.BorrowerName,
		AgentContact:    item.AgentContact,
		Description:     item.Description,
		Note:            item.Note,
		Images:          item.Images,
		Status:          item.Status,
	}
	p.ReservePrice, _ = decimal.NewFromString(item.ReservePrice)
	p.EMD, _ = decimal.NewFromString(item.EMD)
	if item.Area != "" {
		if area, err := decimal.NewFromString(item.Area); err == nil {
			p.Area = &area
		}
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, item.CreatedAt)
	return p
}

func (s *DynamoStore) key(id string) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		"id": &dynamodbtypes.AttributeValueMemberS{Value: id},
	}
}

func (s *DynamoStore) Exists(ctx context.Context, id string) (bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(s.tableName),
		Key:                  s.key(id),
		ProjectionExpression: aws.String("id"),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check property: %w", err)
	}
	return out.Item != nil, nil
}

// Insert is a conditional put, so two racing imports cannot both write the same id.
func (s *DynamoStore) Insert(ctx context.Context, p *model.Property) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	item, err := attributevalue.MarshalMap(toItem(p))
	if err != nil {
		return fmt.Errorf("failed to marshal property: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condErr *dynamodbtypes.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to save property to DynamoDB: %w", err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, id string) (*model.Property, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(id),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var item propertyItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal property: %w", err)
	}
	return fromItem(item), nil
}

// List scans the table; fine for the admin view of a single marketplace.
func (s *DynamoStore) List(ctx context.Context, limit int) ([]*model.Property, error) {
	var (
		properties []*model.Property
		startKey   map[string]dynamodbtypes.AttributeValue
	)
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tableName),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan properties: %w", err)
		}

		var items []propertyItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
		}
		for _, item := range items {
			properties = append(properties, fromItem(item))
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.Slice(properties, func(i, j int) bool {
		return properties[i].CreatedAt.After(properties[j].CreatedAt)
	})
	if limit > 0 && len(properties) > limit {
		properties = properties[:limit]
	}
	return properties, nil
}

func (s *DynamoStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 s.key(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var condErr *dynamodbtypes.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete property: %w", err)
	}
	return nil
}

func (s *DynamoStore) Count(ctx context.Context) (int, error) {
	total := 0
	var startKey map[string]dynamodbtypes.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tableName),
			Select:            dynamodbtypes.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to count properties: %w", err)
		}
		total += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (s *DynamoStore) Close() error { return nil }
