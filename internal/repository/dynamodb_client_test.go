package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/require"

	"commerce-agent/internal/domain"
)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	putErr       error
	queryPages   []*dynamodb.QueryOutput
	queryErr     error
	batchOuts    []*dynamodb.BatchWriteItemOutput
	batchErr     error
	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
	queryInputs  []*dynamodb.QueryInput
	batchInputs  []*dynamodb.BatchWriteItemInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInputs = append(f.queryInputs, in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	page := f.queryPages[0]
	f.queryPages = f.queryPages[1:]
	return page, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.batchInputs = append(f.batchInputs, in)
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	if len(f.batchOuts) == 0 {
		return &dynamodb.BatchWriteItemOutput{}, nil
	}
	out := f.batchOuts[0]
	f.batchOuts = f.batchOuts[1:]
	return out, nil
}

func sAttr(item map[string]types.AttributeValue, key string) string {
	return item[key].(*types.AttributeValueMemberS).Value
}

func sampleOrder() domain.Order {
	return domain.Order{
		OrderID:   "A1003",
		Email:     "alex@example.com",
		CreatedAt: time.Date(2025, 9, 7, 11, 55, 0, 0, time.UTC),
		Total:     119,
		Items:     []domain.LineItem{{ProductID: "P1", Title: "Satin Slip Midi Dress", Size: "M", Quantity: 1, Price: 119}},
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "table")
	require.Error(t, err)
	_, err = New(&fakeDynamo{}, " ")
	require.Error(t, err)
}

func TestFindOrder(t *testing.T) {
	item, err := orderItem(sampleOrder())
	require.NoError(t, err)
	api := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: item}}
	c, err := New(api, "shop")
	require.NoError(t, err)

	order, err := c.FindOrder(context.Background(), "A1003")
	require.NoError(t, err)
	require.Equal(t, sampleOrder(), order)
	require.Equal(t, "ORDER#A1003", sAttr(api.lastGetInput.Key, "PK"))
	require.Equal(t, "ORDER", sAttr(api.lastGetInput.Key, "SK"))
	require.True(t, *api.lastGetInput.ConsistentRead)
}

func TestFindOrder_NotFound(t *testing.T) {
	c, err := New(&fakeDynamo{getOut: &dynamodb.GetItemOutput{}}, "shop")
	require.NoError(t, err)
	_, err = c.FindOrder(context.Background(), "A9999")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestFindOrder_Errors(t *testing.T) {
	c, err := New(&fakeDynamo{getErr: errors.New("throttled")}, "shop")
	require.NoError(t, err)
	_, err = c.FindOrder(context.Background(), "A1003")
	require.ErrorContains(t, err, "throttled")
	require.NotErrorIs(t, err, domain.ErrOrderNotFound)

	broken := map[string]types.AttributeValue{
		"orderId":   &types.AttributeValueMemberS{Value: "A1003"},
		"email":     &types.AttributeValueMemberS{Value: "alex@example.com"},
		"createdAt": &types.AttributeValueMemberS{Value: "yesterday"},
		"total":     &types.AttributeValueMemberN{Value: "119"},
	}
	c, err = New(&fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: broken}}, "shop")
	require.NoError(t, err)
	_, err = c.FindOrder(context.Background(), "A1003")
	require.ErrorContains(t, err, "createdAt")
}

func TestListProducts_FollowsPagination(t *testing.T) {
	p1 := domain.Product{ID: "P1", Title: "Satin Slip Midi Dress", Price: 119, Tags: []string{"wedding"}, Sizes: []string{"S", "M"}, Color: "champagne"}
	p2 := domain.Product{ID: "P2", Title: "Linen Shirt Dress", Price: 75.5, Tags: []string{}, Sizes: []string{"M"}}
	lastKey := map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "CATALOG"}}
	api := &fakeDynamo{queryPages: []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{productItem(p1)}, LastEvaluatedKey: lastKey},
		{Items: []map[string]types.AttributeValue{productItem(p2)}},
	}}
	c, err := New(api, "shop")
	require.NoError(t, err)

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.Product{p1, p2}, products)
	require.Len(t, api.queryInputs, 2)
	require.Nil(t, api.queryInputs[0].ExclusiveStartKey)
	require.Equal(t, lastKey, api.queryInputs[1].ExclusiveStartKey)
	require.Equal(t, "CATALOG", sAttr(api.queryInputs[0].ExpressionAttributeValues, ":pk"))
}

func TestListProducts_Error(t *testing.T) {
	c, err := New(&fakeDynamo{queryErr: errors.New("boom")}, "shop")
	require.NoError(t, err)
	_, err = c.ListProducts(context.Background())
	require.ErrorContains(t, err, "boom")
}

func TestSaveTrace(t *testing.T) {
	api := &fakeDynamo{}
	now := time.Date(2025, 9, 7, 12, 30, 0, 0, time.UTC)
	c, err := New(api, "shop", WithTraceTTL(24*time.Hour))
	require.NoError(t, err)
	c.now = func() time.Time { return now }

	trace := domain.Trace{
		RequestID:     "req-1",
		Intent:        domain.IntentOrderHelp,
		PolicyVerdict: &domain.PolicyVerdict{OrderID: "A1003", Eligible: true, Status: domain.VerdictResolved},
		FinalReply:    "Your order can be cancelled.",
		CreatedAt:     now,
	}
	require.NoError(t, c.SaveTrace(context.Background(), trace))

	item := api.lastPutInput.Item
	require.Equal(t, "TRACE#req-1", sAttr(item, "PK"))
	require.Equal(t, "order_help", sAttr(item, "intent"))
	require.Equal(t, "A1003", sAttr(item, "orderId"))
	require.Equal(t, fmt.Sprintf("%d", now.Add(24*time.Hour).Unix()), item["ttl"].(*types.AttributeValueMemberN).Value)
	require.Contains(t, *api.lastPutInput.ConditionExpression, "attribute_not_exists")

	var decoded domain.Trace
	require.NoError(t, json.Unmarshal([]byte(sAttr(item, "body")), &decoded))
	require.Equal(t, "req-1", decoded.RequestID)
	require.Equal(t, "Your order can be cancelled.", decoded.FinalReply)
}

func TestSaveTrace_Errors(t *testing.T) {
	c, err := New(&fakeDynamo{putErr: errors.New("conditional check failed")}, "shop")
	require.NoError(t, err)
	require.Error(t, c.SaveTrace(context.Background(), domain.Trace{}))
	require.ErrorContains(t, c.SaveTrace(context.Background(), domain.Trace{RequestID: "r"}), "conditional check failed")
}

func TestSeed_BatchesAndRetriesUnprocessed(t *testing.T) {
	products := make([]domain.Product, 30)
	for i := range products {
		products[i] = domain.Product{ID: fmt.Sprintf("P%d", i), Title: "Dress", Price: 10}
	}
	api := &fakeDynamo{}
	c, err := New(api, "shop")
	require.NoError(t, err)
	c.seedBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

	order, err := orderItem(sampleOrder())
	require.NoError(t, err)
	api.batchOuts = []*dynamodb.BatchWriteItemOutput{
		{UnprocessedItems: map[string][]types.WriteRequest{"shop": {{PutRequest: &types.PutRequest{Item: order}}}}},
	}

	require.NoError(t, c.Seed(context.Background(), products, []domain.Order{sampleOrder()}))
	require.Len(t, api.batchInputs, 3)
	require.Len(t, api.batchInputs[0].RequestItems["shop"], 25)
	require.Len(t, api.batchInputs[1].RequestItems["shop"], 1)
	require.Len(t, api.batchInputs[2].RequestItems["shop"], 6)
}

func TestSeed_Error(t *testing.T) {
	api := &fakeDynamo{batchErr: errors.New("denied")}
	c, err := New(api, "shop")
	require.NoError(t, err)
	err = c.Seed(context.Background(), []domain.Product{{ID: "P1"}}, nil)
	require.ErrorContains(t, err, "denied")
	require.Len(t, api.batchInputs, 1, "API errors are not retried")
}

func TestSeed_GivesUpOnPersistentlyUnprocessedItems(t *testing.T) {
	throttled := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{
		"shop": {{PutRequest: &types.PutRequest{Item: productItem(domain.Product{ID: "P1"})}}},
	}}
	api := &fakeDynamo{}
	for range maxSeedTries + 5 {
		api.batchOuts = append(api.batchOuts, throttled)
	}
	c, err := New(api, "shop")
	require.NoError(t, err)
	c.seedBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

	err = c.Seed(context.Background(), []domain.Product{{ID: "P1"}}, nil)
	require.ErrorContains(t, err, "1 items still unprocessed")
	require.Len(t, api.batchInputs, maxSeedTries)
}

func TestSeed_StopsWhenContextIsDone(t *testing.T) {
	throttled := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{
		"shop": {{PutRequest: &types.PutRequest{Item: productItem(domain.Product{ID: "P1"})}}},
	}}
	api := &fakeDynamo{batchOuts: []*dynamodb.BatchWriteItemOutput{throttled, throttled, throttled}}
	c, err := New(api, "shop")
	require.NoError(t, err)
	c.seedBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Minute) }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = c.Seed(ctx, []domain.Product{{ID: "P1"}}, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, api.batchInputs, 1)
}
