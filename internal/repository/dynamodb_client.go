package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v5"

	"commerce-agent/internal/domain"
)

const (
	pkCatalog       = "CATALOG"
	skPrefixProduct = "PRODUCT#"
	skOrder         = "ORDER"
	skTrace         = "TRACE"
	defaultTraceTTL = 30 * 24 * time.Hour

	// BatchWriteItem accepts at most 25 requests per call.
	maxBatchWrite = 25
	// Attempts per batch before unprocessed items fail the seed.
	maxSeedTries = 8
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// TraceWriter persists the per-request audit trace.
type TraceWriter interface {
	SaveTrace(ctx context.Context, trace domain.Trace) error
}

// Client stores the catalog, orders and request traces in a single
// DynamoDB table keyed by PK/SK.
type Client struct {
	api       dynamodbAPI
	tableName string
	traceTTL  time.Duration
	now       func() time.Time

	seedBackOff func() backoff.BackOff
}

type Option func(*Client)

// WithTraceTTL sets how long trace items live before DynamoDB expires them.
func WithTraceTTL(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.traceTTL = d
		}
	}
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	c := &Client{
		api:         api,
		tableName:   tableName,
		traceTTL:    defaultTraceTTL,
		now:         time.Now,
		seedBackOff: defaultSeedBackOff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func orderPK(orderID string) string {
	return "ORDER#" + orderID
}

func tracePK(requestID string) string {
	return "TRACE#" + requestID
}

// FindOrder reads one order by id. A missing item yields domain.ErrOrderNotFound.
func (c *Client) FindOrder(ctx context.Context, orderID string) (domain.Order, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: orderPK(orderID)},
			"SK": &types.AttributeValueMemberS{Value: skOrder},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("repository: FindOrder get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order, err := itemToOrder(out.Item)
	if err != nil {
		return domain.Order{}, fmt.Errorf("repository: FindOrder decode: %w", err)
	}
	return order, nil
}

// ListProducts returns every catalog product, following query pagination.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var (
		products []domain.Product
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := c.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(c.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: pkCatalog},
				":prefix": &types.AttributeValueMemberS{Value: skPrefixProduct},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("repository: ListProducts query: %w", err)
		}
		for _, item := range out.Items {
			p, err := itemToProduct(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ListProducts decode: %w", err)
			}
			products = append(products, p)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return products, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// SaveTrace writes the trace as a JSON document with a TTL. Traces are
// write-once per request id.
func (c *Client) SaveTrace(ctx context.Context, trace domain.Trace) error {
	if strings.TrimSpace(trace.RequestID) == "" {
		return errors.New("repository: SaveTrace: request id is required")
	}
	body, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("repository: SaveTrace marshal: %w", err)
	}
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: tracePK(trace.RequestID)},
		"SK":        &types.AttributeValueMemberS{Value: skTrace},
		"requestId": &types.AttributeValueMemberS{Value: trace.RequestID},
		"intent":    &types.AttributeValueMemberS{Value: string(trace.Intent)},
		"createdAt": &types.AttributeValueMemberS{Value: trace.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"body":      &types.AttributeValueMemberS{Value: string(body)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(c.now().Add(c.traceTTL).Unix(), 10)},
	}
	if trace.PolicyVerdict != nil {
		item["orderId"] = &types.AttributeValueMemberS{Value: trace.PolicyVerdict.OrderID}
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: SaveTrace: %w", err)
	}
	return nil
}

// Seed bulk-loads products and orders, e.g. from a FileStore fixture.
func (c *Client) Seed(ctx context.Context, products []domain.Product, orders []domain.Order) error {
	reqs := make([]types.WriteRequest, 0, len(products)+len(orders))
	for _, p := range products {
		reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: productItem(p)}})
	}
	for _, o := range orders {
		item, err := orderItem(o)
		if err != nil {
			return fmt.Errorf("repository: Seed: %w", err)
		}
		reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	for start := 0; start < len(reqs); start += maxBatchWrite {
		end := min(start+maxBatchWrite, len(reqs))
		if err := c.writeBatch(ctx, reqs[start:end]); err != nil {
			return fmt.Errorf("repository: Seed batch write: %w", err)
		}
	}
	return nil
}

// writeBatch writes one batch, resending unprocessed items with backoff up
// to maxSeedTries times. API errors are not retried here; the SDK already
// retries throttling at the request level.
func (c *Client) writeBatch(ctx context.Context, batch []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{c.tableName: batch}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		out, err := c.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if out == nil || len(out.UnprocessedItems[c.tableName]) == 0 {
			return struct{}{}, nil
		}
		pending = out.UnprocessedItems
		return struct{}{}, fmt.Errorf("%d items still unprocessed", len(pending[c.tableName]))
	}, backoff.WithBackOff(c.seedBackOff()), backoff.WithMaxTries(maxSeedTries))
	return err
}

func defaultSeedBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

func productItem(p domain.Product) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: pkCatalog},
		"SK":        &types.AttributeValueMemberS{Value: skPrefixProduct + p.ID},
		"productId": &types.AttributeValueMemberS{Value: p.ID},
		"title":     &types.AttributeValueMemberS{Value: p.Title},
		"price":     &types.AttributeValueMemberN{Value: strconv.FormatFloat(p.Price, 'f', -1, 64)},
		"tags":      listAttr(p.Tags),
		"sizes":     listAttr(p.Sizes),
		"color":     &types.AttributeValueMemberS{Value: p.Color},
		"fabric":    &types.AttributeValueMemberS{Value: p.Fabric},
	}
}

func itemToProduct(item map[string]types.AttributeValue) (domain.Product, error) {
	id, err := strAttr(item, "productId")
	if err != nil {
		return domain.Product{}, err
	}
	title, err := strAttr(item, "title")
	if err != nil {
		return domain.Product{}, err
	}
	price, err := floatAttr(item, "price")
	if err != nil {
		return domain.Product{}, err
	}
	color, _ := strAttr(item, "color")   // optional
	fabric, _ := strAttr(item, "fabric") // optional
	return domain.Product{
		ID:     id,
		Title:  title,
		Price:  price,
		Tags:   stringsAttr(item, "tags"),
		Sizes:  stringsAttr(item, "sizes"),
		Color:  color,
		Fabric: fabric,
	}, nil
}

func orderItem(o domain.Order) (map[string]types.AttributeValue, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal items of %s: %w", o.OrderID, err)
	}
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: orderPK(o.OrderID)},
		"SK":        &types.AttributeValueMemberS{Value: skOrder},
		"orderId":   &types.AttributeValueMemberS{Value: o.OrderID},
		"email":     &types.AttributeValueMemberS{Value: o.Email},
		"createdAt": &types.AttributeValueMemberS{Value: o.CreatedAt.UTC().Format(time.RFC3339)},
		"total":     &types.AttributeValueMemberN{Value: strconv.FormatFloat(o.Total, 'f', -1, 64)},
		"items":     &types.AttributeValueMemberS{Value: string(items)},
	}, nil
}

func itemToOrder(item map[string]types.AttributeValue) (domain.Order, error) {
	id, err := strAttr(item, "orderId")
	if err != nil {
		return domain.Order{}, err
	}
	email, err := strAttr(item, "email")
	if err != nil {
		return domain.Order{}, err
	}
	created, err := strAttr(item, "createdAt")
	if err != nil {
		return domain.Order{}, err
	}
	createdAt, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return domain.Order{}, fmt.Errorf("repository: attribute %q: %w", "createdAt", err)
	}
	total, err := floatAttr(item, "total")
	if err != nil {
		return domain.Order{}, err
	}
	var lines []domain.LineItem
	if raw, _ := strAttr(item, "items"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &lines); err != nil {
			return domain.Order{}, fmt.Errorf("repository: attribute %q: %w", "items", err)
		}
	}
	return domain.Order{
		OrderID:   id,
		Email:     email,
		CreatedAt: createdAt.UTC(),
		Total:     total,
		Items:     lines,
	}, nil
}

func listAttr(values []string) *types.AttributeValueMemberL {
	l := &types.AttributeValueMemberL{Value: make([]types.AttributeValue, 0, len(values))}
	for _, v := range values {
		l.Value = append(l.Value, &types.AttributeValueMemberS{Value: v})
	}
	return l
}

func stringsAttr(item map[string]types.AttributeValue, key string) []string {
	l, ok := item[key].(*types.AttributeValueMemberL)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(l.Value))
	for _, v := range l.Value {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			out = append(out, s.Value)
		}
	}
	return out
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func floatAttr(item map[string]types.AttributeValue, key string) (float64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
