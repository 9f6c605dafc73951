package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"

	"rentalstation/internal/db"
)

const (
	stationIndex = "stationId-index"
	userIndex    = "userId-index"
	statusIndex  = "status-index"
)

// DynamoAPI is the subset of *dynamodb.Client the rental store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type DynamoTables struct {
	Items    string
	Payments string
	Outbox   string
}

type DynamoRentalStore struct {
	client      DynamoAPI
	tables      DynamoTables
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

func NewDynamoRentalStore(client DynamoAPI, tables DynamoTables, maxAttempts int) *DynamoRentalStore {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &DynamoRentalStore{
		client:      client,
		tables:      tables,
		maxAttempts: maxAttempts,
		backoff:     25 * time.Millisecond,
		now:         time.Now,
	}
}

func (s *DynamoRentalStore) GetItem(ctx context.Context, token string) (*db.RentalItem, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Items),
		Key:            itemKey(token),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("error getting rental item %s: %w", token, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var item db.RentalItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("error decoding rental item %s: %w", token, err)
	}
	return &item, nil
}

// GetPaymentByKey returns the payment recorded for a gateway payment key. The payments table is
// keyed by paymentKey, so a key can back at most one rental.
func (s *DynamoRentalStore) GetPaymentByKey(ctx context.Context, key string) (*db.RentalPayment, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Payments),
		Key:            paymentItemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("error getting payment by key: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var p db.RentalPayment
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("error decoding payment: %w", err)
	}
	return &p, nil
}

func (s *DynamoRentalStore) CreateItem(ctx context.Context, item db.RentalItem) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("error encoding rental item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tables.Items),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#t)"),
		ExpressionAttributeNames: map[string]string{
			"#t": "token",
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrDuplicate
		}
		return fmt.Errorf("error creating rental item %s: %w", item.Token, err)
	}
	return nil
}

func (s *DynamoRentalStore) ListItemsByStation(ctx context.Context, stationID string) ([]db.RentalItem, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Items),
		IndexName:              aws.String(stationIndex),
		KeyConditionExpression: aws.String("stationId = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: stationID},
		},
	})

	var items []db.RentalItem
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error querying items of station %s: %w", stationID, err)
		}
		var batch []db.RentalItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("error decoding items of station %s: %w", stationID, err)
		}
		items = append(items, batch...)
	}
	return items, nil
}

func (s *DynamoRentalStore) ListPaymentsByUser(ctx context.Context, userID string, limit int) ([]db.RentalPayment, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Payments),
		IndexName:              aws.String(userIndex),
		KeyConditionExpression: aws.String("userId = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("error querying payments of user: %w", err)
	}

	var payments []db.RentalPayment
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &payments); err != nil {
		return nil, fmt.Errorf("error decoding payments: %w", err)
	}
	return payments, nil
}

func (s *DynamoRentalStore) ListPendingEvents(ctx context.Context, createdBefore time.Time, limit int) ([]db.OutboxEvent, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Outbox),
		IndexName:              aws.String(statusIndex),
		KeyConditionExpression: aws.String("#s = :pending AND createdAt < :before"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: db.OutboxStatusPending},
			":before":  &types.AttributeValueMemberS{Value: outboxTime(createdBefore)},
		},
		Limit: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("error querying pending outbox events: %w", err)
	}

	var events []db.OutboxEvent
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &events); err != nil {
		return nil, fmt.Errorf("error decoding outbox events: %w", err)
	}
	return events, nil
}

func (s *DynamoRentalStore) MarkEventPublished(ctx context.Context, id string, at time.Time) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tables.Outbox),
		Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		UpdateExpression:    aws.String("SET #s = :published, publishedAt = :at"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":published": &types.AttributeValueMemberS{Value: db.OutboxStatusPublished},
			":at":        &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("error marking outbox event %s published: %w", id, err)
	}
	return nil
}

func (s *DynamoRentalStore) RecordEventAttempt(ctx context.Context, id string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tables.Outbox),
		Key:              map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		UpdateExpression: aws.String("ADD attempts :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		return fmt.Errorf("error recording attempt for outbox event %s: %w", id, err)
	}
	return nil
}

// RunTransaction runs fn and commits its buffered writes with TransactWriteItems. Every
// item read through the txn is pinned to the version that was read; if another writer got
// there first the whole body is run again, up to maxAttempts times.
func (s *DynamoRentalStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx RentalTxn) error) error {
	for attempt := 1; ; attempt++ {
		tx := &dynamoTxn{
			store:   s,
			reads:   map[string]int64{},
			updated: map[string]bool{},
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if tx.err != nil {
			return tx.err
		}

		err := s.commit(ctx, tx)
		if err == nil {
			return nil
		}
		if !isTxConflict(err) {
			return fmt.Errorf("error committing transaction: %w", err)
		}
		if attempt >= s.maxAttempts {
			return fmt.Errorf("%w: gave up after %d attempts", ErrTxConflict, attempt)
		}

		logrus.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err,
		}).Warn("rental store transaction conflict, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
}

func (s *DynamoRentalStore) commit(ctx context.Context, tx *dynamoTxn) error {
	items := make([]types.TransactWriteItem, 0, len(tx.writes)+len(tx.reads))
	items = append(items, tx.writes...)

	for token, version := range tx.reads {
		if tx.updated[token] {
			continue
		}
		items = append(items, types.TransactWriteItem{
			ConditionCheck: &types.ConditionCheck{
				TableName:           aws.String(s.tables.Items),
				Key:                 itemKey(token),
				ConditionExpression: aws.String(versionCondition(version)),
				ExpressionAttributeNames: map[string]string{
					"#v": "version",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":version": numberValue(version),
				},
			},
		})
	}

	if len(tx.writes) == 0 {
		return nil
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return err
}

type dynamoTxn struct {
	store   *DynamoRentalStore
	reads   map[string]int64
	updated map[string]bool
	writes  []types.TransactWriteItem
	err     error
}

func (t *dynamoTxn) GetItem(ctx context.Context, token string) (*db.RentalItem, error) {
	item, err := t.store.GetItem(ctx, token)
	if err != nil {
		return nil, err
	}
	t.reads[token] = item.Version
	return item, nil
}

func (t *dynamoTxn) GetPaymentByKey(ctx context.Context, key string) (*db.RentalPayment, error) {
	return t.store.GetPaymentByKey(ctx, key)
}

// CreatePayment fails the commit if the payment key is already recorded; RunTransaction then
// re-runs the body, which sees the existing payment.
func (t *dynamoTxn) CreatePayment(p db.RentalPayment) {
	p.PaymentDate = p.PaymentDate.UTC().Truncate(time.Second)
	av, err := attributevalue.MarshalMap(p)
	if err != nil {
		t.fail(fmt.Errorf("error encoding rental payment: %w", err))
		return
	}
	t.writes = append(t.writes, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(t.store.tables.Payments),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(paymentKey)"),
		},
	})
}

func (t *dynamoTxn) UpdateItemStatus(item *db.RentalItem, status string) {
	version, ok := t.reads[item.Token]
	if !ok {
		t.fail(fmt.Errorf("rental item %s was not read in this transaction", item.Token))
		return
	}
	t.updated[item.Token] = true
	t.writes = append(t.writes, types.TransactWriteItem{
		Update: &types.Update{
			TableName:           aws.String(t.store.tables.Items),
			Key:                 itemKey(item.Token),
			UpdateExpression:    aws.String("SET #s = :status, #v = if_not_exists(#v, :zero) + :one, updatedAt = :now"),
			ConditionExpression: aws.String(versionCondition(version)),
			ExpressionAttributeNames: map[string]string{
				"#s": "status",
				"#v": "version",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":status":  &types.AttributeValueMemberS{Value: status},
				":zero":    numberValue(0),
				":one":     numberValue(1),
				":version": numberValue(version),
				":now":     &types.AttributeValueMemberS{Value: t.store.now().UTC().Format(time.RFC3339Nano)},
			},
		},
	})
}

func (t *dynamoTxn) EnqueueEvent(e db.OutboxEvent) {
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Second)
	av, err := attributevalue.MarshalMap(e)
	if err != nil {
		t.fail(fmt.Errorf("error encoding outbox event: %w", err))
		return
	}
	t.writes = append(t.writes, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(t.store.tables.Outbox),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	})
}

func (t *dynamoTxn) fail(err error) {
	if t.err == nil {
		t.err = err
	}
}

func isTxConflict(err error) bool {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			code := aws.ToString(reason.Code)
			if code == "ConditionalCheckFailed" || code == "TransactionConflict" {
				return true
			}
		}
		return false
	}
	var conflict *types.TransactionConflictException
	return errors.As(err, &conflict)
}

func itemKey(token string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"token": &types.AttributeValueMemberS{Value: token},
	}
}

func paymentItemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"paymentKey": &types.AttributeValueMemberS{Value: key},
	}
}

// versionCondition pins an item to the version read. Items seeded outside this service may
// carry no version attribute at all; those read as version 0.
func versionCondition(version int64) string {
	if version == 0 {
		return "attribute_not_exists(#v) OR #v = :version"
	}
	return "#v = :version"
}

func numberValue(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

// outboxTime renders t the way attributevalue encodes a second-truncated UTC time.
func outboxTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339Nano)
}
